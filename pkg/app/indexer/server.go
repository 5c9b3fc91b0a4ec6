// Package indexer implements app.Runner for the price index process: the
// periodic index jobs plus the read API.
package indexer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apphttp "github.com/dexlens/dexlens/pkg/app/http"
	"github.com/dexlens/dexlens/pkg/cache"
	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/config"
	"github.com/dexlens/dexlens/pkg/ingest"
	"github.com/dexlens/dexlens/pkg/orchestrator"
	"github.com/dexlens/dexlens/pkg/pgutil"
	"github.com/dexlens/dexlens/pkg/pricedb"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
	"github.com/dexlens/dexlens/pkg/pricesource"
	"github.com/dexlens/dexlens/pkg/service/prices"
	"github.com/dexlens/dexlens/pkg/tokenlist"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the indexer process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new indexer server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("indexer config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting indexer",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("networks", len(cfg.Networks)),
	)

	registry, err := chain.NewRegistry(cfg.ChainNetworks())
	if err != nil {
		return fmt.Errorf("build network registry: %w", err)
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	store := pricedb.NewStore(db, logger)

	sources, ingestors, closeSources, err := s.buildSources(registry, store, logger)
	if err != nil {
		return err
	}
	defer closeSources()

	orch := orchestrator.New(registry, sources, store, logger)

	// A cycle at startup fills the series before the first tick.
	s.runInitialCycle(ctx, orch, logger)

	scheduler := orchestrator.NewScheduler(s.buildJobs(registry, store, orch, ingestors, logger), logger)
	scheduler.Start()
	defer scheduler.Stop()

	router := s.setupRouter(registry, store, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	// Stop background work before deferred DB closes kick in.
	scheduler.Stop()

	return err
}

// buildSources creates one price source per registered network, keyed by
// chain id, plus swap ingestors for subgraph-capable networks.
func (s *Server) buildSources(
	registry *chain.Registry,
	store *pricedb.Store,
	logger *zap.Logger,
) (map[uint64]pricesource.Source, []*ingest.Ingestor, func(), error) {
	sources := make(map[uint64]pricesource.Source, registry.Len())
	var ingestors []*ingest.Ingestor
	var closers []func()

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, network := range registry.All() {
		switch network.Capability {
		case chain.CapabilitySubgraph:
			sources[network.ChainID] = pricesource.NewSubgraphSource(network, logger)
			ingestors = append(ingestors, ingest.NewIngestor(network, store, s.cfg.Jobs.SwapPageSize, logger))

		case chain.CapabilityOnchain:
			client, err := pricesource.NewOnchainClient(network, logger)
			if err != nil {
				closeAll()
				return nil, nil, nil, fmt.Errorf("network %s: connect rpc: %w", network.Name, err)
			}
			closers = append(closers, client.Close)
			sources[network.ChainID] = pricesource.NewGraphResolver(network, client, client, logger)
		}

		logger.Info("Configured price source",
			zap.String("network", network.Name),
			zap.Uint64("chain_id", network.ChainID),
			zap.String("capability", string(network.Capability)))
	}

	return sources, ingestors, closeAll, nil
}

func (s *Server) buildJobs(
	registry *chain.Registry,
	store *pricedb.Store,
	orch *orchestrator.Orchestrator,
	ingestors []*ingest.Ingestor,
	logger *zap.Logger,
) []orchestrator.Job {
	jobs := []orchestrator.Job{{
		Name:     "price-cycle",
		Interval: s.cfg.Jobs.PriceInterval,
		Run:      orch.RunCycle,
	}}

	if s.cfg.Jobs.TokenListURL != "" {
		refresher := tokenlist.NewRefresher(s.cfg.Jobs.TokenListURL, registry, store, logger)
		jobs = append(jobs, orchestrator.Job{
			Name:     "token-list",
			Interval: s.cfg.Jobs.TokenListInterval,
			Run: func(ctx context.Context) error {
				if _, err := refresher.Refresh(ctx); err != nil {
					return err
				}
				return s.syncPools(ctx, registry, store, logger)
			},
		})
	}

	if len(ingestors) > 0 {
		jobs = append(jobs, orchestrator.Job{
			Name:     "swap-ingest",
			Interval: s.cfg.Jobs.SwapInterval,
			Run: func(ctx context.Context) error {
				for _, ing := range ingestors {
					if _, err := ing.Ingest(ctx); err != nil {
						logger.Error("Swap ingestion failed", zap.Error(err))
					}
				}
				return nil
			},
		})
	}

	return jobs
}

// syncPools mirrors the pool inventory of onchain-capable networks into the
// pools table so the read API and swap mapping can see them.
func (s *Server) syncPools(ctx context.Context, registry *chain.Registry, store *pricedb.Store, logger *zap.Logger) error {
	for _, network := range registry.All() {
		if network.Capability != chain.CapabilityOnchain {
			continue
		}
		client, err := pricesource.NewOnchainClient(network, logger)
		if err != nil {
			logger.Error("Pool sync connect failed", zap.String("network", network.Name), zap.Error(err))
			continue
		}

		pairs, err := client.Pools(ctx)
		client.Close()
		if err != nil {
			logger.Error("Pool sync failed", zap.String("network", network.Name), zap.Error(err))
			continue
		}

		rows := make([]dao.PoolDao, 0, len(pairs))
		for _, pair := range pairs {
			rows = append(rows, dao.PoolDao{
				ChainID:      int64(network.ChainID),
				BaseAddress:  pair.Base,
				QuoteAddress: pair.Quote,
				PoolIndex:    pair.PoolIndex,
			})
		}
		if err := store.UpsertPools(ctx, rows); err != nil {
			logger.Error("Pool sync write failed", zap.String("network", network.Name), zap.Error(err))
		}
	}
	return nil
}

func (s *Server) runInitialCycle(ctx context.Context, orch *orchestrator.Orchestrator, logger *zap.Logger) {
	timeout := s.cfg.Jobs.PriceInterval
	if timeout <= 0 {
		timeout = time.Minute
	}

	startupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := orch.RunCycle(startupCtx); err != nil {
		logger.Warn("Initial index cycle failed (will retry periodically)", zap.Error(err))
		return
	}
	logger.Info("Initial index cycle completed")
}

func (s *Server) openRedis(logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, read API cache disabled",
			zap.String("addr", s.cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}

	logger.Info("Connected to Redis", zap.String("addr", s.cfg.Redis.Addr))
	return client
}

func (s *Server) setupRouter(registry *chain.Registry, store *pricedb.Store, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.Handler())

	readCache := cache.New(s.openRedis(logger), s.cfg.Redis.TTL, logger)
	service := prices.NewService(registry, store, logger)
	r.Mount("/v1", prices.NewHandler(service, readCache, logger).Routes())

	return r
}
