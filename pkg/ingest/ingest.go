// Package ingest pulls recent swap events from a chain's subgraph into the
// swaps table. Inserts are idempotent on (chain, tx hash, log index), so
// overlapping pages across runs are harmless.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dexlens/dexlens/internal/metrics"
	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
)

const (
	defaultPageSize     = 500
	defaultQueryTimeout = 30 * time.Second
)

// swapsQuery fetches the most recent swaps with enough context to map each
// one back onto a known pool.
const swapsQuery = `query($first: Int!) {
  swaps(first: $first, orderBy: timestamp, orderDirection: desc) {
    transaction { id }
    logIndex
    pool {
      token0 { id }
      token1 { id }
    }
    amount0
    amount1
    amountUSD
    timestamp
  }
}`

type swapsResponse struct {
	Data struct {
		Swaps []struct {
			Transaction struct {
				ID string `json:"id"`
			} `json:"transaction"`
			LogIndex string `json:"logIndex"`
			Pool     struct {
				Token0 struct {
					ID string `json:"id"`
				} `json:"token0"`
				Token1 struct {
					ID string `json:"id"`
				} `json:"token1"`
			} `json:"pool"`
			Amount0   string `json:"amount0"`
			Amount1   string `json:"amount1"`
			AmountUSD string `json:"amountUSD"`
			Timestamp string `json:"timestamp"`
		} `json:"swaps"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SwapStore is the persistence surface the ingestor needs.
type SwapStore interface {
	ListPools(ctx context.Context, chainID uint64) ([]dao.PoolDao, error)
	InsertSwaps(ctx context.Context, swaps []dao.SwapDao) (int, error)
}

// Ingestor pulls swaps for one subgraph-capable network.
type Ingestor struct {
	network  chain.Network
	store    SwapStore
	client   *http.Client
	pageSize int
	logger   *zap.Logger
}

// NewIngestor creates an Ingestor for one network. pageSize <= 0 selects the
// default page size.
func NewIngestor(network chain.Network, store SwapStore, pageSize int, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	timeout := network.RequestTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Ingestor{
		network:  network,
		store:    store,
		client:   &http.Client{Timeout: timeout},
		pageSize: pageSize,
		logger:   logger,
	}
}

// Ingest fetches the latest swap page and stores it. Swaps whose pool is not
// in the pools table are dropped. Returns the number of newly inserted rows.
func (i *Ingestor) Ingest(ctx context.Context) (int, error) {
	pools, err := i.store.ListPools(ctx, i.network.ChainID)
	if err != nil {
		return 0, fmt.Errorf("chain %d: list pools: %w", i.network.ChainID, err)
	}
	if len(pools) == 0 {
		return 0, nil
	}
	poolByPair := indexPools(pools)

	decoded, err := i.querySwaps(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain %d: query swaps: %w", i.network.ChainID, err)
	}

	rows := make([]dao.SwapDao, 0, len(decoded.Data.Swaps))
	for _, swap := range decoded.Data.Swaps {
		base := chain.NormalizeAddress(swap.Pool.Token0.ID)
		quote := chain.NormalizeAddress(swap.Pool.Token1.ID)
		poolID, ok := poolByPair[pairKey(base, quote)]
		if !ok {
			continue
		}

		logIndex, err := strconv.Atoi(swap.LogIndex)
		if err != nil {
			i.logger.Warn("Unparseable swap log index",
				zap.String("tx", swap.Transaction.ID),
				zap.String("log_index", swap.LogIndex))
			continue
		}
		unix, err := strconv.ParseInt(swap.Timestamp, 10, 64)
		if err != nil {
			i.logger.Warn("Unparseable swap timestamp",
				zap.String("tx", swap.Transaction.ID),
				zap.String("timestamp", swap.Timestamp))
			continue
		}

		row := dao.SwapDao{
			ChainID:     int64(i.network.ChainID),
			PoolID:      poolID,
			TxHash:      swap.Transaction.ID,
			LogIndex:    logIndex,
			AmountBase:  swap.Amount0,
			AmountQuote: swap.Amount1,
			BlockTime:   time.Unix(unix, 0).UTC(),
		}
		if swap.AmountUSD != "" {
			usd := swap.AmountUSD
			row.AmountUSD = &usd
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return 0, nil
	}

	inserted, err := i.store.InsertSwaps(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("chain %d: insert swaps: %w", i.network.ChainID, err)
	}

	metrics.SwapsIngested.WithLabelValues(i.network.Name).Add(float64(inserted))
	i.logger.Info("Swap page ingested",
		zap.Uint64("chain_id", i.network.ChainID),
		zap.Int("fetched", len(decoded.Data.Swaps)),
		zap.Int("inserted", inserted))
	return inserted, nil
}

func (i *Ingestor) querySwaps(ctx context.Context) (*swapsResponse, error) {
	body, err := json.Marshal(map[string]any{
		"query":     swapsQuery,
		"variables": map[string]any{"first": i.pageSize},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.network.SubgraphURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("subgraph returned %d: %s", resp.StatusCode, payload)
	}

	var decoded swapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode swaps response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("subgraph error: %s", decoded.Errors[0].Message)
	}
	return &decoded, nil
}

// indexPools maps each pool pair onto a pool row id. When multiple fee tiers
// exist for a pair the first listed pool wins.
func indexPools(pools []dao.PoolDao) map[string]int64 {
	out := make(map[string]int64, len(pools))
	for _, p := range pools {
		key := pairKey(p.BaseAddress, p.QuoteAddress)
		if _, ok := out[key]; !ok {
			out[key] = p.ID
		}
	}
	return out
}

func pairKey(base, quote string) string {
	if base > quote {
		base, quote = quote, base
	}
	return base + "/" + quote
}
