// Package tokenlist keeps the token inventory in sync with a published
// token list. Entries for chains that are not configured are ignored.
package tokenlist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
)

const defaultFetchTimeout = 30 * time.Second

// TokenStore is the persistence surface the refresher writes into.
type TokenStore interface {
	UpsertTokens(ctx context.Context, tokens []dao.TokenDao) error
}

// tokenListDocument is the decoded token list payload.
type tokenListDocument struct {
	Name   string `json:"name"`
	Tokens []struct {
		ChainID  uint64 `json:"chainId"`
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals uint8  `json:"decimals"`
		LogoURI  string `json:"logoURI"`
	} `json:"tokens"`
}

// Refresher fetches a token list and upserts its entries for configured
// chains.
type Refresher struct {
	url      string
	registry *chain.Registry
	store    TokenStore
	client   *http.Client
	logger   *zap.Logger
}

// NewRefresher creates a Refresher for the given token list URL.
func NewRefresher(url string, registry *chain.Registry, store TokenStore, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		url:      url,
		registry: registry,
		store:    store,
		client:   &http.Client{Timeout: defaultFetchTimeout},
		logger:   logger,
	}
}

// Refresh fetches the token list and upserts every entry belonging to a
// configured chain. Returns the number of entries written.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	doc, err := r.fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch token list: %w", err)
	}

	tokens := make([]dao.TokenDao, 0, len(doc.Tokens))
	for _, entry := range doc.Tokens {
		if _, ok := r.registry.Get(entry.ChainID); !ok {
			continue
		}
		if entry.Address == "" {
			continue
		}
		row := dao.TokenDao{
			ChainID:  int64(entry.ChainID),
			Address:  chain.NormalizeAddress(entry.Address),
			Symbol:   entry.Symbol,
			Name:     entry.Name,
			Decimals: entry.Decimals,
		}
		if entry.LogoURI != "" {
			uri := entry.LogoURI
			row.LogoURI = &uri
		}
		tokens = append(tokens, row)
	}

	if len(tokens) == 0 {
		r.logger.Warn("Token list contained no entries for configured chains",
			zap.String("list", doc.Name))
		return 0, nil
	}

	if err := r.store.UpsertTokens(ctx, tokens); err != nil {
		return 0, fmt.Errorf("upsert tokens: %w", err)
	}

	r.logger.Info("Token list refreshed",
		zap.String("list", doc.Name),
		zap.Int("tokens", len(tokens)))
	return len(tokens), nil
}

func (r *Refresher) fetch(ctx context.Context) (*tokenListDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token list returned %d: %s", resp.StatusCode, payload)
	}

	var doc tokenListDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	return &doc, nil
}
