package pricegraph

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the maximum number of fractional digits carried by a composed
// price before persistence.
const Scale = 18

var (
	// ErrMissingRate is returned when a hop along the path has no spot price
	// observation; the whole composition fails rather than substituting a
	// partial value.
	ErrMissingRate = errors.New("missing hop rate")

	// ErrDegenerateRate is returned when a composed price collapses to zero
	// or below, which would corrupt downstream aggregation if stored.
	ErrDegenerateRate = errors.New("degenerate composed rate")
)

// RateLookup supplies the correctly-directed exchange rate for one hop.
// Implementations resolve (from, to) back to a concrete pool (including its
// pool index) and must return the rate as quoted when traversing from `from`
// to `to`, inverting the canonical-direction quote when the hop is walked in
// reverse.
type RateLookup interface {
	Rate(from, to string) (decimal.Decimal, error)
}

// RateFunc adapts a plain function to RateLookup.
type RateFunc func(from, to string) (decimal.Decimal, error)

// Rate implements RateLookup.
func (f RateFunc) Rate(from, to string) (decimal.Decimal, error) {
	return f(from, to)
}

// Compose multiplies the per-hop rates along path left to right, starting
// from 1. A single-node path is the identity conversion and returns exactly
// 1 without consulting rates. Any missing hop rate fails the composition
// with ErrMissingRate; a zero or negative product fails with
// ErrDegenerateRate. The result is rounded to at most Scale fractional
// digits.
func Compose(path []string, rates RateLookup) (decimal.Decimal, error) {
	if len(path) == 0 {
		return decimal.Decimal{}, fmt.Errorf("empty path")
	}

	product := decimal.NewFromInt(1)
	for i := 0; i+1 < len(path); i++ {
		from, to := path[i], path[i+1]
		rate, err := rates.Rate(from, to)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("hop %s -> %s: %w (%v)", from, to, ErrMissingRate, err)
		}
		product = product.Mul(rate)
	}

	if product.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("path %v: %w", path, ErrDegenerateRate)
	}

	return product.Round(Scale), nil
}
