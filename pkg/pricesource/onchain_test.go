package pricesource

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

// sqrtX96 returns the Q64.96 encoding of sqrt(ratio) for exact squares,
// mirroring how pools encode their spot price.
func sqrtX96(sqrtRatio int64) *big.Int {
	v := big.NewInt(sqrtRatio)
	return v.Lsh(v, 96)
}

func TestPriceFromSqrtX96_EqualDecimals(t *testing.T) {
	// sqrt ratio 2 -> price 4 token1 per token0.
	got, err := priceFromSqrtX96(sqrtX96(2), 18, 18)
	if err != nil {
		t.Fatalf("priceFromSqrtX96 failed: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected 4, got %s", got)
	}
}

func TestPriceFromSqrtX96_DecimalsAdjustment(t *testing.T) {
	// Raw ratio 1 between an 18-decimals token0 and a 6-decimals token1
	// means one whole token0 buys 1e12 raw units = 1edec0-dec1 display
	// units adjusted: price = 1e(18-6) * 1e-12 ... the display price is
	// 10^(dec0-dec1) * ratio = 1e12 * 1e-12 = 1 when the raw ratio is 1e-12.
	raw := sqrtX96(1) // raw ratio 1
	got, err := priceFromSqrtX96(raw, 18, 6)
	if err != nil {
		t.Fatalf("priceFromSqrtX96 failed: %v", err)
	}
	want := decimal.New(1, 12) // 1e12
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPriceFromSqrtX96_RejectsZero(t *testing.T) {
	if _, err := priceFromSqrtX96(big.NewInt(0), 18, 18); err == nil {
		t.Fatal("expected error for zero sqrt price")
	}
	if _, err := priceFromSqrtX96(nil, 18, 18); err == nil {
		t.Fatal("expected error for nil sqrt price")
	}
}

func TestPriceFromSqrtX96_TinyPriceSurvivesScale(t *testing.T) {
	// A deeply sub-unit price must not collapse to zero at display scale.
	sqrt := new(big.Int).Rsh(sqrtX96(1), 6) // ratio 2^-12
	got, err := priceFromSqrtX96(sqrt, 18, 18)
	if err != nil {
		t.Fatalf("priceFromSqrtX96 failed: %v", err)
	}
	if got.Sign() <= 0 {
		t.Fatalf("expected positive price, got %s", got)
	}
}
