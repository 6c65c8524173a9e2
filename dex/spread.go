package dex

import (
	"fmt"
	"math"
	"math/big"

	"github.com/michaelpento.lv/arbengine/types"
)

// PriceOf derives the display price of a snapshot: ReserveOut / ReserveIn.
// The ratio is used only for comparison and display, never for settlement.
func PriceOf(s *types.PoolSnapshot) (float64, error) {
	if s == nil || s.ReserveIn == nil || s.ReserveOut == nil {
		return 0, fmt.Errorf("%w: nil snapshot", types.ErrDegenerateInput)
	}
	if s.ReserveIn.Sign() <= 0 || s.ReserveOut.Sign() <= 0 {
		return 0, fmt.Errorf("%w: pool %s reserves (in=%s out=%s)",
			types.ErrDegenerateInput, s.PoolID.Hex(), s.ReserveIn, s.ReserveOut)
	}

	price, _ := new(big.Float).Quo(
		new(big.Float).SetInt(s.ReserveOut),
		new(big.Float).SetInt(s.ReserveIn),
	).Float64()
	return price, nil
}

// Spread returns the symmetric percentage spread between two prices:
// |p1-p2| / min(p1,p2) * 100. Spread(a, b) == Spread(b, a).
func Spread(price1, price2 float64) (float64, error) {
	if price1 <= 0 || price2 <= 0 {
		return 0, fmt.Errorf("%w: prices must be positive (%.6f, %.6f)",
			types.ErrDegenerateInput, price1, price2)
	}
	return math.Abs(price1-price2) / math.Min(price1, price2) * 100, nil
}
