package types

import "errors"

// Sentinel errors for the cycle-level taxonomy. Callers classify with
// errors.Is and wrap with fmt.Errorf("%w: ...") to add context.
var (
	// ErrDegenerateInput marks a zero or negative reserve/price. Fatal to
	// the current cycle, never retried.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrInsufficientPools marks fewer than two snapshots.
	ErrInsufficientPools = errors.New("insufficient pools")

	// ErrNotProfitable is the expected clean outcome when the spread or net
	// profit is below threshold. No external call has been made.
	ErrNotProfitable = errors.New("not profitable")

	// ErrSwapEventNotFound marks a mutating call that confirmed without the
	// expected swap event in its receipt. Funds may be stuck; this is an
	// integrity failure of the attempt and is never swallowed.
	ErrSwapEventNotFound = errors.New("swap event not found")

	// ErrAllowanceInsufficient marks a failed or skipped approval step.
	// Recoverable by re-approving before the next attempt.
	ErrAllowanceInsufficient = errors.New("allowance insufficient")

	// ErrLedgerRejected marks a remote call that was rejected or reverted.
	ErrLedgerRejected = errors.New("ledger rejected")

	// ErrNetworkFailure marks transient connectivity loss. Read-only calls
	// retry with backoff; mutating calls only after a receipt lookup shows
	// the prior attempt did not land.
	ErrNetworkFailure = errors.New("network failure")

	// ErrRouteBusy marks a cycle rejected because its selected route already
	// has an attempt in flight. No external call has been made.
	ErrRouteBusy = errors.New("route attempt already in flight")
)

// ClassifyFailure maps an error to its FailureKind for reporting.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrNotProfitable):
		return FailureNotProfitable
	case errors.Is(err, ErrDegenerateInput):
		return FailureDegenerateInput
	case errors.Is(err, ErrInsufficientPools):
		return FailureInsufficientPools
	case errors.Is(err, ErrSwapEventNotFound):
		return FailureSwapEventNotFound
	case errors.Is(err, ErrAllowanceInsufficient):
		return FailureAllowanceInsufficient
	case errors.Is(err, ErrNetworkFailure):
		return FailureNetwork
	case errors.Is(err, ErrRouteBusy):
		return FailureRouteBusy
	default:
		return FailureLedgerRejected
	}
}
