package dex

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUnits(t *testing.T) {
	assert.Equal(t, big.NewInt(10000), ToUnits(10000, 0))
	assert.Equal(t, big.NewInt(2500000), ToUnits(25, 5))

	expected, _ := new(big.Int).SetString("10000000000000000000000", 10)
	assert.Equal(t, expected, ToUnits(10000, 18))
}

func TestFromUnits(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals uint8
		expected string
	}{
		{"whole amount", "10000", 0, "10000"},
		{"exact scale", "1000000000000000000", 18, "1"},
		{"fractional", "1500000000000000000", 18, "1.5"},
		{"sub-unit", "130", 3, "0.13"},
		{"negative", "-1500", 3, "-1.5"},
		{"negative sub-unit", "-130", 3, "-0.13"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, ok := new(big.Int).SetString(tc.amount, 10)
			assert.True(t, ok)
			assert.Equal(t, tc.expected, FromUnits(amount, tc.decimals))
		})
	}
}

func TestFromUnitsNil(t *testing.T) {
	assert.Equal(t, "0", FromUnits(nil, 18))
}
