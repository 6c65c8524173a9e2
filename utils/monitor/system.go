package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// SystemMonitor samples process health on an interval and exposes it as
// gauges. Collectors stay unregistered until the caller wires them into a
// registry.
type SystemMonitor struct {
	cancel   context.CancelFunc
	logger   *zap.Logger
	interval time.Duration
	metrics  struct {
		memUsage    prometheus.Gauge
		goroutines  prometheus.Gauge
		heapObjects prometheus.Gauge
		heapAlloc   prometheus.Gauge
		gcPause     prometheus.Gauge
	}
	wg sync.WaitGroup
}

// NewSystemMonitor creates a system monitor. Call Start to begin sampling.
func NewSystemMonitor(interval time.Duration, logger *zap.Logger) *SystemMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	m := &SystemMonitor{
		logger:   logger,
		interval: interval,
	}

	m.metrics.memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_memory_usage_percent",
		Help: "Allocated heap as a share of memory obtained from the OS",
	})
	m.metrics.goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_goroutines",
		Help: "Current number of goroutines",
	})
	m.metrics.heapObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_heap_objects",
		Help: "Current number of heap objects",
	})
	m.metrics.heapAlloc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_heap_alloc_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.metrics.gcPause = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_gc_pause_seconds",
		Help: "Most recent GC pause duration",
	})

	return m
}

// Collectors exposes the monitor's gauges for registration.
func (m *SystemMonitor) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.metrics.memUsage,
		m.metrics.goroutines,
		m.metrics.heapObjects,
		m.metrics.heapAlloc,
		m.metrics.gcPause,
	}
}

// Start launches the sampling loop.
func (m *SystemMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collect()
			}
		}
	}()
}

func (m *SystemMonitor) collect() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	if memStats.Sys > 0 {
		m.metrics.memUsage.Set(float64(memStats.Alloc) / float64(memStats.Sys) * 100)
	}
	m.metrics.goroutines.Set(float64(runtime.NumGoroutine()))
	m.metrics.heapObjects.Set(float64(memStats.HeapObjects))
	m.metrics.heapAlloc.Set(float64(memStats.HeapAlloc))
	m.metrics.gcPause.Set(float64(memStats.PauseNs[(memStats.NumGC+255)%256]) / float64(time.Second))
}

// Snapshot returns the current sample for logging.
func (m *SystemMonitor) Snapshot() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"heap_objects": memStats.HeapObjects,
		"heap_alloc":   memStats.HeapAlloc,
	}
}

// Stop halts sampling and waits for the loop to exit.
func (m *SystemMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
