package dex

import (
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/arbengine/types"
)

const feeDenominator = 10000

// SwapOutput calculates the constant-product output for an input amount, with
// the fee taken from the input leg. All arithmetic is exact big.Int; the
// division floors. The result is always strictly below reserveOut, so a pool
// can never be fully drained.
func SwapOutput(amountIn, reserveIn, reserveOut *big.Int, feeBasisPoints uint16) (*big.Int, error) {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return nil, fmt.Errorf("%w: nil amount", types.ErrDegenerateInput)
	}
	if amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amountIn %s", types.ErrDegenerateInput, amountIn)
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: reserves must be positive (in=%s out=%s)",
			types.ErrDegenerateInput, reserveIn, reserveOut)
	}
	if feeBasisPoints >= feeDenominator {
		return nil, fmt.Errorf("%w: fee %d bps out of range", types.ErrDegenerateInput, feeBasisPoints)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(feeDenominator-feeBasisPoints)))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, amountInWithFee)

	return numerator.Div(numerator, denominator), nil
}

// LoanFee returns amount * feeBasisPoints / 10000, floored.
func LoanFee(amount *big.Int, feeBasisPoints uint16) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(feeBasisPoints)))
	return fee.Div(fee, big.NewInt(feeDenominator))
}
