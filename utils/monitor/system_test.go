package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestSystemMonitorCollect(t *testing.T) {
	m := NewSystemMonitor(time.Second, zaptest.NewLogger(t))
	m.collect()

	snapshot := m.Snapshot()
	assert.Positive(t, snapshot["goroutines"])
	assert.Len(t, m.Collectors(), 5)
}

func TestSystemMonitorStartStop(t *testing.T) {
	m := NewSystemMonitor(10*time.Millisecond, zaptest.NewLogger(t))
	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}
