package pricesource

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricegraph"
)

const (
	usdtAddr  = "0x0000000000000000000000000000000000000aaa"
	wethAddr  = "0x0000000000000000000000000000000000000bbb"
	tokAddr   = "0x0000000000000000000000000000000000000ccc"
	lonerAddr = "0x0000000000000000000000000000000000000ddd"
)

type fakePoolLister struct {
	pairs []pricegraph.Pair
	err   error
}

func (f *fakePoolLister) Pools(context.Context) ([]pricegraph.Pair, error) {
	return f.pairs, f.err
}

type fakeSpotPricer struct {
	prices map[string]string
	calls  int
}

func (f *fakeSpotPricer) SpotPrice(_ context.Context, p pricegraph.Pair) (decimal.Decimal, error) {
	f.calls++
	key := fmt.Sprintf("%s/%s/%d", p.Base, p.Quote, p.PoolIndex)
	raw, ok := f.prices[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no spot price for %s", key)
	}
	return decimal.RequireFromString(raw), nil
}

func testNetwork() chain.Network {
	return chain.Network{
		ChainID:       777,
		Name:          "testnet",
		Capability:    chain.CapabilityOnchain,
		StableAddress: usdtAddr,
	}
}

func testTokens() []Token {
	return []Token{
		{ID: 1, Address: usdtAddr, Decimals: 6},
		{ID: 2, Address: wethAddr, Decimals: 18},
		{ID: 3, Address: tokAddr, Decimals: 18},
	}
}

func TestGraphResolver_EndToEnd(t *testing.T) {
	// Pools USDT-ETH (ETH -> USDT = 2000) and ETH-TOK (TOK -> ETH = 0.01);
	// TOK must resolve through [TOK, ETH, USDT] to 20 USDT.
	pools := &fakePoolLister{pairs: []pricegraph.Pair{
		{Base: usdtAddr, Quote: wethAddr, PoolIndex: 0},
		{Base: wethAddr, Quote: tokAddr, PoolIndex: 0},
	}}
	spots := &fakeSpotPricer{prices: map[string]string{
		// Canonical direction: base denominated in quote.
		usdtAddr + "/" + wethAddr + "/0": "0.0005", // 1 USDT = 0.0005 ETH
		wethAddr + "/" + tokAddr + "/0":  "100",    // 1 ETH = 100 TOK
	}}

	r := NewGraphResolver(testNetwork(), pools, spots, zap.NewNop())
	asOf := time.Now().UTC()

	obs, err := r.Fetch(context.Background(), testTokens(), asOf)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	byAddr := map[string]Observation{}
	for _, o := range obs {
		byAddr[o.Address] = o
	}

	stable, ok := byAddr[usdtAddr]
	if !ok {
		t.Fatal("expected observation for the reference stablecoin")
	}
	if !stable.Value.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected stablecoin price of exactly 1, got %s", stable.Value)
	}

	tok, ok := byAddr[tokAddr]
	if !ok {
		t.Fatal("expected observation for TOK")
	}
	if !tok.Value.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected TOK price of 20, got %s", tok.Value)
	}
	if !tok.AsOf.Equal(asOf) {
		t.Fatalf("expected as-of %s, got %s", asOf, tok.AsOf)
	}

	eth, ok := byAddr[wethAddr]
	if !ok {
		t.Fatal("expected observation for ETH")
	}
	if !eth.Value.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected ETH price of 2000, got %s", eth.Value)
	}
}

func TestGraphResolver_UnreachableTokenSkipped(t *testing.T) {
	pools := &fakePoolLister{pairs: []pricegraph.Pair{
		{Base: usdtAddr, Quote: wethAddr, PoolIndex: 0},
	}}
	spots := &fakeSpotPricer{prices: map[string]string{
		usdtAddr + "/" + wethAddr + "/0": "0.0005",
	}}

	tokens := append(testTokens(), Token{ID: 4, Address: lonerAddr, Decimals: 18})
	r := NewGraphResolver(testNetwork(), pools, spots, zap.NewNop())

	obs, err := r.Fetch(context.Background(), tokens, time.Now())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	for _, o := range obs {
		if o.Address == lonerAddr || o.Address == tokAddr {
			t.Fatalf("expected no observation for unreachable token %s", o.Address)
		}
		if o.Value.Sign() <= 0 {
			t.Fatalf("observation for %s has non-positive value %s", o.Address, o.Value)
		}
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations (stable + weth), got %d", len(obs))
	}
}

func TestGraphResolver_MissingSpotPriceSkipsToken(t *testing.T) {
	pools := &fakePoolLister{pairs: []pricegraph.Pair{
		{Base: usdtAddr, Quote: wethAddr, PoolIndex: 0},
		{Base: wethAddr, Quote: tokAddr, PoolIndex: 0},
	}}
	// Only the USDT-ETH pool has a live quote.
	spots := &fakeSpotPricer{prices: map[string]string{
		usdtAddr + "/" + wethAddr + "/0": "0.0005",
	}}

	r := NewGraphResolver(testNetwork(), pools, spots, zap.NewNop())
	obs, err := r.Fetch(context.Background(), testTokens(), time.Now())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	for _, o := range obs {
		if o.Address == tokAddr {
			t.Fatal("token with a failed hop quote must be skipped, not zero-filled")
		}
	}
}

func TestGraphResolver_PoolListFailureIsFatalForChainOnly(t *testing.T) {
	pools := &fakePoolLister{err: fmt.Errorf("rpc unavailable")}
	r := NewGraphResolver(testNetwork(), pools, &fakeSpotPricer{}, zap.NewNop())

	if _, err := r.Fetch(context.Background(), testTokens(), time.Now()); err == nil {
		t.Fatal("expected error when the pool list cannot be fetched")
	}
}

func TestRateTable_OneSpotCallPerPool(t *testing.T) {
	pairs := []pricegraph.Pair{{Base: "a", Quote: "b", PoolIndex: 0}}
	spots := &fakeSpotPricer{prices: map[string]string{"a/b/0": "4"}}
	table := newRateTable(context.Background(), spots, pairs, zap.NewNop())

	fwd, err := table.Rate("a", "b")
	if err != nil {
		t.Fatalf("Rate a->b failed: %v", err)
	}
	rev, err := table.Rate("b", "a")
	if err != nil {
		t.Fatalf("Rate b->a failed: %v", err)
	}

	if !fwd.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected forward rate 4, got %s", fwd)
	}
	if !fwd.Mul(rev).Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected inverse rate, got %s", rev)
	}
	if spots.calls != 1 {
		t.Fatalf("expected a single spot call for both directions, got %d", spots.calls)
	}
}
