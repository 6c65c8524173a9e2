package dex

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/michaelpento.lv/arbengine/types"
)

// ReceiptSource is the ledger's transaction-receipt surface.
// *ethclient.Client satisfies it.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

const (
	receiptLookupAttempts = 3
	receiptLookupBackoff  = 500 * time.Millisecond
)

// AwaitReceipt waits for a submitted transaction to confirm. A transient
// failure while waiting is retried by direct receipt lookup before the
// attempt is declared lost: the transaction may already have landed, and a
// blind re-submit would double-execute it.
func AwaitReceipt(ctx context.Context, source ReceiptSource, txHash common.Hash) (*ethtypes.Receipt, error) {
	backoff := receiptLookupBackoff
	var lastErr error

	for attempt := 0; attempt < receiptLookupAttempts; attempt++ {
		receipt, err := source.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: awaiting receipt %s: %v",
				types.ErrNetworkFailure, txHash.Hex(), ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%w: receipt %s not found after %d lookups: %v",
		types.ErrNetworkFailure, txHash.Hex(), receiptLookupAttempts, lastErr)
}
