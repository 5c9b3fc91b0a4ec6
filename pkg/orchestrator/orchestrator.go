// Package orchestrator drives the periodic price index cycle: it asks each
// configured network's source for fresh observations and persists them into
// every series granularity.
package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/internal/metrics"
	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricedb"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
	"github.com/dexlens/dexlens/pkg/pricesource"
)

// SeriesStore is the persistence surface the orchestrator needs: the token
// inventory per chain and the series writer.
type SeriesStore interface {
	ListTokens(ctx context.Context, chainID uint64) ([]dao.TokenDao, error)
	StoreSeries(ctx context.Context, g pricedb.Granularity, observations []pricesource.Observation) (int, error)
}

// Orchestrator runs index cycles over all registered networks. A cycle that
// is still running when the next one is due causes the new one to be skipped
// rather than stacked.
type Orchestrator struct {
	registry *chain.Registry
	sources  map[uint64]pricesource.Source
	store    SeriesStore
	logger   *zap.Logger

	running atomic.Bool
	now     func() time.Time
}

// New creates an Orchestrator over the given sources, keyed by chain id.
func New(registry *chain.Registry, sources map[uint64]pricesource.Source, store SeriesStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: registry,
		sources:  sources,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// RunCycle executes one full index cycle: fetch observations from every
// network, then write them into all granularities. Per-chain fetch failures
// and per-granularity write failures are logged and counted but do not abort
// the remaining work.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Warn("Previous cycle still running, skipping")
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	defer o.running.Store(false)

	cycleID := uuid.New().String()
	asOf := o.now().UTC()
	start := time.Now()

	logger := o.logger.With(zap.String("cycle_id", cycleID))
	logger.Info("Starting index cycle", zap.Time("as_of", asOf))

	var observations []pricesource.Observation
	for _, network := range o.registry.All() {
		source, ok := o.sources[network.ChainID]
		if !ok {
			logger.Warn("No source configured for network", zap.String("network", network.Name))
			continue
		}

		obs, err := o.fetchChain(ctx, network, source, asOf)
		if err != nil {
			metrics.ChainFetchFailures.WithLabelValues(network.Name).Inc()
			logger.Error("Chain fetch failed",
				zap.String("network", network.Name),
				zap.Uint64("chain_id", network.ChainID),
				zap.Error(err))
			continue
		}

		metrics.ObservationsResolved.WithLabelValues(network.Name).Add(float64(len(obs)))
		observations = append(observations, obs...)
	}

	written := 0
	var writeErrs []error
	for _, g := range pricedb.Granularities {
		n, err := o.store.StoreSeries(ctx, g, observations)
		if err != nil {
			metrics.SeriesWriteFailures.WithLabelValues(g.String()).Inc()
			logger.Error("Series write failed",
				zap.String("granularity", g.String()),
				zap.Error(err))
			writeErrs = append(writeErrs, err)
			continue
		}
		written += n
	}

	if len(writeErrs) > 0 {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return errors.Join(writeErrs...)
	}

	metrics.CyclesTotal.WithLabelValues("completed").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	logger.Info("Index cycle completed",
		zap.Int("observations", len(observations)),
		zap.Int("rows_written", written),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (o *Orchestrator) fetchChain(ctx context.Context, network chain.Network, source pricesource.Source, asOf time.Time) ([]pricesource.Observation, error) {
	rows, err := o.store.ListTokens(ctx, network.ChainID)
	if err != nil {
		return nil, err
	}

	tokens := make([]pricesource.Token, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, pricesource.Token{
			ID:       row.ID,
			Address:  row.Address,
			Decimals: row.Decimals,
		})
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	return source.Fetch(ctx, tokens, asOf)
}
