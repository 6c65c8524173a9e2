package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, FailureNone},
		{"not profitable", ErrNotProfitable, FailureNotProfitable},
		{"degenerate input", ErrDegenerateInput, FailureDegenerateInput},
		{"insufficient pools", ErrInsufficientPools, FailureInsufficientPools},
		{"swap event not found", ErrSwapEventNotFound, FailureSwapEventNotFound},
		{"allowance insufficient", ErrAllowanceInsufficient, FailureAllowanceInsufficient},
		{"network failure", ErrNetworkFailure, FailureNetwork},
		{"route busy", ErrRouteBusy, FailureRouteBusy},
		{"ledger rejected", ErrLedgerRejected, FailureLedgerRejected},
		{"unknown error", errors.New("boom"), FailureLedgerRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFailure(tc.err))
		})
	}
}

func TestClassifyFailureUnwrapsContext(t *testing.T) {
	wrapped := fmt.Errorf("step repay: %w", fmt.Errorf("%w: connection reset", ErrNetworkFailure))
	assert.Equal(t, FailureNetwork, ClassifyFailure(wrapped))
}
