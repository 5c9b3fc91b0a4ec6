package pricesource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/pkg/chain"
)

const (
	nativeAddr  = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	wrappedAddr = "0x1111111111111111111111111111111111111111"
	daiAddr     = "0x2222222222222222222222222222222222222222"
)

func subgraphServer(t *testing.T, tokens []map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := map[string]any{"data": map[string]any{"tokens": tokens}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func subgraphNetwork(url string) chain.Network {
	return chain.Network{
		ChainID:       1,
		Name:          "mainnet",
		Capability:    chain.CapabilitySubgraph,
		StableAddress: daiAddr,
		Native:        nativeAddr,
		WrappedNative: wrappedAddr,
		SubgraphURL:   url,
	}
}

func TestSubgraphSource_MapsQuotes(t *testing.T) {
	srv := subgraphServer(t, []map[string]string{
		{"id": wrappedAddr, "priceUSD": "3500.25"},
		{"id": daiAddr, "priceUSD": "1.0001"},
	})
	defer srv.Close()

	src := NewSubgraphSource(subgraphNetwork(srv.URL), zap.NewNop())
	tokens := []Token{
		{ID: 1, Address: wrappedAddr, Decimals: 18},
		{ID: 2, Address: daiAddr, Decimals: 18},
	}

	obs, err := src.Fetch(context.Background(), tokens, time.Now())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if !obs[0].Value.Equal(decimal.RequireFromString("3500.25")) {
		t.Fatalf("expected 3500.25, got %s", obs[0].Value)
	}
}

func TestSubgraphSource_NativeFallsBackToWrapped(t *testing.T) {
	srv := subgraphServer(t, []map[string]string{
		{"id": wrappedAddr, "priceUSD": "3500"},
	})
	defer srv.Close()

	src := NewSubgraphSource(subgraphNetwork(srv.URL), zap.NewNop())
	tokens := []Token{{ID: 7, Address: nativeAddr, Decimals: 18}}

	obs, err := src.Fetch(context.Background(), tokens, time.Now())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected the native coin to inherit the wrapped quote, got %d observations", len(obs))
	}
	if !obs[0].Value.Equal(decimal.NewFromInt(3500)) {
		t.Fatalf("expected 3500, got %s", obs[0].Value)
	}
}

func TestSubgraphSource_SkipsZeroAndUnparseableQuotes(t *testing.T) {
	srv := subgraphServer(t, []map[string]string{
		{"id": wrappedAddr, "priceUSD": "0"},
		{"id": daiAddr, "priceUSD": "not-a-number"},
	})
	defer srv.Close()

	src := NewSubgraphSource(subgraphNetwork(srv.URL), zap.NewNop())
	tokens := []Token{
		{ID: 1, Address: wrappedAddr, Decimals: 18},
		{ID: 2, Address: daiAddr, Decimals: 18},
	}

	obs, err := src.Fetch(context.Background(), tokens, time.Now())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected zero observations, got %d", len(obs))
	}
}

func TestSubgraphSource_ServerErrorFailsChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "subgraph down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewSubgraphSource(subgraphNetwork(srv.URL), zap.NewNop())
	if _, err := src.Fetch(context.Background(), []Token{{ID: 1, Address: daiAddr}}, time.Now()); err == nil {
		t.Fatal("expected error from failing subgraph")
	}
}
