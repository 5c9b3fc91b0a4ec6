package pricesource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/internal/metrics"
	"github.com/dexlens/dexlens/pkg/chain"
)

const defaultSubgraphTimeout = 30 * time.Second

// tokenQuotesQuery asks the subgraph for its USD quote per token. The
// subgraph aggregates across pools itself, so no graph work is needed here.
const tokenQuotesQuery = `{
  tokens(first: 1000) {
    id
    priceUSD
  }
}`

// tokenQuotesResponse is the decoded shape of the subgraph reply. Responses
// are decoded into explicit structs at this boundary so the rest of the
// pipeline only sees validated decimals and addresses.
type tokenQuotesResponse struct {
	Data struct {
		Tokens []struct {
			ID       string `json:"id"`
			PriceUSD string `json:"priceUSD"`
		} `json:"tokens"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SubgraphSource is the direct-quote price source variant: the chain's
// subgraph already returns a USD price per token.
type SubgraphSource struct {
	network chain.Network
	client  *http.Client
	logger  *zap.Logger
}

// NewSubgraphSource builds a direct-quote source for one subgraph-capable
// network.
func NewSubgraphSource(network chain.Network, logger *zap.Logger) *SubgraphSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := network.RequestTimeout
	if timeout <= 0 {
		timeout = defaultSubgraphTimeout
	}
	return &SubgraphSource{
		network: network,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ChainID implements Source.
func (s *SubgraphSource) ChainID() uint64 {
	return s.network.ChainID
}

// Fetch implements Source. Tokens without a usable quote are skipped. When
// the native coin has no direct quote but its wrapped representative does,
// the wrapped quote is substituted for the native coin.
func (s *SubgraphSource) Fetch(ctx context.Context, tokens []Token, asOf time.Time) ([]Observation, error) {
	quotes, err := s.queryQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain %d: query subgraph: %w", s.network.ChainID, err)
	}

	if s.network.Native != "" && s.network.WrappedNative != "" {
		if _, ok := quotes[s.network.Native]; !ok {
			if wrapped, ok := quotes[s.network.WrappedNative]; ok {
				quotes[s.network.Native] = wrapped
			}
		}
	}

	out := make([]Observation, 0, len(tokens))
	for _, tok := range tokens {
		addr := chain.NormalizeAddress(tok.Address)
		value, ok := quotes[addr]
		if !ok {
			metrics.ObservationsSkipped.WithLabelValues(s.network.Name, "no_quote").Inc()
			s.logger.Debug("No subgraph quote for token",
				zap.Uint64("chain_id", s.network.ChainID),
				zap.String("token", addr))
			continue
		}
		out = append(out, Observation{
			TokenID: tok.ID,
			ChainID: s.network.ChainID,
			Address: addr,
			Value:   value,
			AsOf:    asOf,
		})
	}
	return out, nil
}

func (s *SubgraphSource) queryQuotes(ctx context.Context) (map[string]decimal.Decimal, error) {
	body, err := json.Marshal(map[string]string{"query": tokenQuotesQuery})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.network.SubgraphURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("subgraph returned %d: %s", resp.StatusCode, payload)
	}

	var decoded tokenQuotesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode subgraph response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("subgraph error: %s", decoded.Errors[0].Message)
	}

	quotes := make(map[string]decimal.Decimal, len(decoded.Data.Tokens))
	for _, t := range decoded.Data.Tokens {
		value, err := decimal.NewFromString(t.PriceUSD)
		if err != nil {
			s.logger.Warn("Unparseable subgraph quote",
				zap.Uint64("chain_id", s.network.ChainID),
				zap.String("token", t.ID),
				zap.String("price", t.PriceUSD),
				zap.Error(err))
			continue
		}
		if value.Sign() <= 0 {
			// A zero quote is never usable; treat it as absent.
			continue
		}
		quotes[chain.NormalizeAddress(t.ID)] = value
	}
	return quotes, nil
}
