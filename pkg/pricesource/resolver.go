package pricesource

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/internal/metrics"
	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricegraph"
)

// inversePrecision is the working precision for inverted hop rates, kept
// above pricegraph.Scale so the final rounding absorbs inversion error.
const inversePrecision = pricegraph.Scale + 10

// PoolLister returns the chain's current pool set.
type PoolLister interface {
	Pools(ctx context.Context) ([]pricegraph.Pair, error)
}

// SpotPricer returns the canonical-direction spot price for one pool: the
// display-scale price of the base token denominated in the quote token,
// already adjusted for both tokens' decimals.
type SpotPricer interface {
	SpotPrice(ctx context.Context, p pricegraph.Pair) (decimal.Decimal, error)
}

// GraphResolver is the graph-resolution price source variant: it builds the
// pair graph from the chain's pools, finds the shortest conversion path from
// each requested token to the reference stablecoin, and composes the spot
// rates along that path.
type GraphResolver struct {
	network chain.Network
	pools   PoolLister
	spots   SpotPricer
	logger  *zap.Logger
}

// NewGraphResolver builds a resolver for one onchain-capable network.
func NewGraphResolver(network chain.Network, pools PoolLister, spots SpotPricer, logger *zap.Logger) *GraphResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphResolver{network: network, pools: pools, spots: spots, logger: logger}
}

// ChainID implements Source.
func (r *GraphResolver) ChainID() uint64 {
	return r.network.ChainID
}

// Fetch implements Source. Tokens with no path to the stablecoin, a missing
// hop price, or a degenerate composed price are skipped and logged, never
// reported as zero.
func (r *GraphResolver) Fetch(ctx context.Context, tokens []Token, asOf time.Time) ([]Observation, error) {
	pairs, err := r.pools.Pools(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain %d: list pools: %w", r.network.ChainID, err)
	}

	graph := pricegraph.Build(pairs)
	rates := newRateTable(ctx, r.spots, pairs, r.logger)
	stable := r.network.StableAddress

	out := make([]Observation, 0, len(tokens))
	for _, tok := range tokens {
		addr := chain.NormalizeAddress(tok.Address)

		// The reference stablecoin always resolves to exactly 1.
		if addr == stable {
			out = append(out, Observation{
				TokenID: tok.ID,
				ChainID: r.network.ChainID,
				Address: addr,
				Value:   decimal.NewFromInt(1),
				AsOf:    asOf,
			})
			continue
		}

		path, err := graph.ShortestPath(addr, stable)
		if err != nil {
			r.skip(addr, "unreachable", err)
			continue
		}

		value, err := pricegraph.Compose(path, rates)
		if err != nil {
			r.skip(addr, "composition", err)
			continue
		}

		out = append(out, Observation{
			TokenID: tok.ID,
			ChainID: r.network.ChainID,
			Address: addr,
			Value:   value,
			AsOf:    asOf,
		})
	}
	return out, nil
}

func (r *GraphResolver) skip(addr, stage string, err error) {
	metrics.ObservationsSkipped.WithLabelValues(r.network.Name, stage).Inc()
	r.logger.Debug("Token skipped for this cycle",
		zap.Uint64("chain_id", r.network.ChainID),
		zap.String("token", addr),
		zap.String("stage", stage),
		zap.Error(err))
}

// rateTable caches directed hop rates for one resolution cycle. Canonical
// quotes are fetched lazily, one call per pool; the reverse direction is
// derived by inversion. A failed or zero quote poisons both directions of
// that pool so composition fails fast instead of guessing.
type rateTable struct {
	ctx    context.Context
	spots  SpotPricer
	pools  map[[2]string]pricegraph.Pair
	cache  map[[2]string]decimal.Decimal
	failed map[[2]string]error
	logger *zap.Logger
}

func newRateTable(ctx context.Context, spots SpotPricer, pairs []pricegraph.Pair, logger *zap.Logger) *rateTable {
	t := &rateTable{
		ctx:    ctx,
		spots:  spots,
		pools:  make(map[[2]string]pricegraph.Pair, len(pairs)),
		cache:  make(map[[2]string]decimal.Decimal),
		failed: make(map[[2]string]error),
		logger: logger,
	}
	for _, p := range pairs {
		key := [2]string{p.Base, p.Quote}
		// First pool per direction wins, matching graph adjacency order.
		if _, ok := t.pools[key]; !ok {
			t.pools[key] = p
		}
	}
	return t
}

// Rate implements pricegraph.RateLookup: it resolves (from, to) back to a
// concrete pool, returning the canonical quote when traversing base->quote
// and its inverse when traversing quote->base.
func (t *rateTable) Rate(from, to string) (decimal.Decimal, error) {
	key := [2]string{from, to}
	if rate, ok := t.cache[key]; ok {
		return rate, nil
	}
	if err, ok := t.failed[key]; ok {
		return decimal.Decimal{}, err
	}

	pool, canonical := t.pools[key]
	if !canonical {
		rev, ok := t.pools[[2]string{to, from}]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("no pool connects %s and %s", from, to)
		}
		pool = rev
	}

	quote, err := t.spots.SpotPrice(t.ctx, pool)
	if err == nil && quote.Sign() <= 0 {
		err = fmt.Errorf("non-positive spot price %s", quote)
	}
	if err != nil {
		err = fmt.Errorf("pool %s/%s index %d: %w", pool.Base, pool.Quote, pool.PoolIndex, err)
		t.failed[[2]string{pool.Base, pool.Quote}] = err
		t.failed[[2]string{pool.Quote, pool.Base}] = err
		return decimal.Decimal{}, err
	}

	inverse := decimal.NewFromInt(1).DivRound(quote, inversePrecision)
	t.cache[[2]string{pool.Base, pool.Quote}] = quote
	t.cache[[2]string{pool.Quote, pool.Base}] = inverse
	return t.cache[key], nil
}
