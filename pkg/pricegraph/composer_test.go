package pricegraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

// canonicalRates returns a lookup backed by canonical-direction quotes only,
// inverting on demand for reverse traversal.
func canonicalRates(quotes map[string]string) RateLookup {
	return RateFunc(func(from, to string) (decimal.Decimal, error) {
		if q, ok := quotes[from+"/"+to]; ok {
			return decimal.RequireFromString(q), nil
		}
		if q, ok := quotes[to+"/"+from]; ok {
			rate := decimal.RequireFromString(q)
			if rate.IsZero() {
				return decimal.Decimal{}, fmt.Errorf("zero canonical rate %s/%s", to, from)
			}
			return decimal.NewFromInt(1).DivRound(rate, Scale+10), nil
		}
		return decimal.Decimal{}, fmt.Errorf("no quote for %s/%s", from, to)
	})
}

func TestCompose_Identity(t *testing.T) {
	rates := RateFunc(func(_, _ string) (decimal.Decimal, error) {
		t.Fatal("identity composition must not consult rates")
		return decimal.Decimal{}, nil
	})

	got, err := Compose([]string{"x"}, rates)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected exactly 1, got %s", got)
	}
}

func TestCompose_MultiHop(t *testing.T) {
	rates := canonicalRates(map[string]string{
		"a/b": "2",
		"b/c": "3",
	})

	got, err := Compose([]string{"a", "b", "c"}, rates)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected 6, got %s", got)
	}
}

func TestCompose_ReversePathInvertsHops(t *testing.T) {
	rates := canonicalRates(map[string]string{
		"a/b": "2",
		"b/c": "3",
	})

	got, err := Compose([]string{"c", "b", "a"}, rates)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	want := decimal.NewFromInt(1).DivRound(decimal.NewFromInt(6), Scale)
	if !got.Equal(want) {
		t.Fatalf("expected 1/6 (%s), got %s", want, got)
	}
}

func TestCompose_MissingHopFailsWhole(t *testing.T) {
	rates := canonicalRates(map[string]string{"a/b": "2"})

	if _, err := Compose([]string{"a", "b", "c"}, rates); !errors.Is(err, ErrMissingRate) {
		t.Fatalf("expected ErrMissingRate, got %v", err)
	}
}

func TestCompose_ZeroProductRejected(t *testing.T) {
	rates := canonicalRates(map[string]string{"a/b": "0"})

	if _, err := Compose([]string{"a", "b"}, rates); !errors.Is(err, ErrDegenerateRate) {
		t.Fatalf("expected ErrDegenerateRate, got %v", err)
	}
}

func TestCompose_EndToEndStablePath(t *testing.T) {
	// TOK -> ETH at 0.01, ETH -> USDT at 2000: TOK is worth 20 USDT.
	rates := canonicalRates(map[string]string{
		"tok/eth":  "0.01",
		"eth/usdt": "2000",
	})

	got, err := Compose([]string{"tok", "eth", "usdt"}, rates)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20, got %s", got)
	}
}
