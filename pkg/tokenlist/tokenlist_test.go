package tokenlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
)

type captureStore struct {
	tokens []dao.TokenDao
}

func (c *captureStore) UpsertTokens(_ context.Context, tokens []dao.TokenDao) error {
	c.tokens = append(c.tokens, tokens...)
	return nil
}

func testRegistry(t *testing.T) *chain.Registry {
	t.Helper()
	registry, err := chain.NewRegistry([]chain.Network{{
		ChainID:       1,
		Name:          "mainnet",
		Capability:    chain.CapabilitySubgraph,
		StableAddress: "0xstable",
		SubgraphURL:   "http://localhost/subgraph",
	}})
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	return registry
}

func TestRefresh_UpsertsConfiguredChainsOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"name": "Test List",
			"tokens": [
				{"chainId": 1, "address": "0xAAA", "symbol": "AAA", "name": "Token A", "decimals": 18, "logoURI": "https://logo/a.png"},
				{"chainId": 137, "address": "0xBBB", "symbol": "BBB", "name": "Token B", "decimals": 6},
				{"chainId": 1, "address": "", "symbol": "EMPTY", "name": "No Address", "decimals": 18}
			]
		}`))
	}))
	defer server.Close()

	store := &captureStore{}
	r := NewRefresher(server.URL, testRegistry(t), store, zap.NewNop())

	written, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 token written, got %d", written)
	}

	tok := store.tokens[0]
	if tok.Address != "0xaaa" {
		t.Errorf("expected lowercased address 0xaaa, got %q", tok.Address)
	}
	if tok.ChainID != 1 || tok.Symbol != "AAA" || tok.Decimals != 18 {
		t.Errorf("unexpected token row: %+v", tok)
	}
	if tok.LogoURI == nil || *tok.LogoURI != "https://logo/a.png" {
		t.Errorf("expected logo URI to be carried over, got %v", tok.LogoURI)
	}
}

func TestRefresh_EmptyListWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "Empty", "tokens": []}`))
	}))
	defer server.Close()

	store := &captureStore{}
	r := NewRefresher(server.URL, testRegistry(t), store, zap.NewNop())

	written, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if written != 0 || len(store.tokens) != 0 {
		t.Errorf("expected no writes, got %d written, %d stored", written, len(store.tokens))
	}
}

func TestRefresh_ServerErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	r := NewRefresher(server.URL, testRegistry(t), &captureStore{}, zap.NewNop())

	if _, err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
