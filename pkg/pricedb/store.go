// Package pricedb persists tokens, pools, swaps and the minute/hour/day
// price series. All writes are idempotent upserts so overlapping cycles and
// re-runs cannot corrupt rows.
package pricedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/internal/metrics"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
	"github.com/dexlens/dexlens/pkg/pricesource"
)

// ErrNotFound is returned by read methods when no matching row exists.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the price index.
type Store struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewStore creates a new price database store.
func NewStore(db *bun.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// =============================================================================
// Tokens & pools
// =============================================================================

// UpsertTokens inserts tokens or refreshes their metadata on conflict. Chain
// id and address never change once created.
func (s *Store) UpsertTokens(ctx context.Context, tokens []dao.TokenDao) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&tokens).
		On("CONFLICT (chain_id, address) DO UPDATE").
		Set("symbol = EXCLUDED.symbol").
		Set("name = EXCLUDED.name").
		Set("decimals = EXCLUDED.decimals").
		Set("logo_uri = EXCLUDED.logo_uri").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert tokens: %w", err)
	}
	return nil
}

// ListTokens returns all tokens on one chain.
func (s *Store) ListTokens(ctx context.Context, chainID uint64) ([]dao.TokenDao, error) {
	var tokens []dao.TokenDao
	err := s.db.NewSelect().
		Model(&tokens).
		Where("chain_id = ?", int64(chainID)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// GetToken looks up one token by chain and lowercase address.
func (s *Store) GetToken(ctx context.Context, chainID uint64, address string) (*dao.TokenDao, error) {
	token := new(dao.TokenDao)
	err := s.db.NewSelect().
		Model(token).
		Where("chain_id = ?", int64(chainID)).
		Where("address = ?", address).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// UpsertPools inserts pools, ignoring ones already known.
func (s *Store) UpsertPools(ctx context.Context, pools []dao.PoolDao) error {
	if len(pools) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&pools).
		On("CONFLICT (chain_id, base_address, quote_address, pool_index) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert pools: %w", err)
	}
	return nil
}

// ListPools returns all pools on one chain in insertion order.
func (s *Store) ListPools(ctx context.Context, chainID uint64) ([]dao.PoolDao, error) {
	var pools []dao.PoolDao
	err := s.db.NewSelect().
		Model(&pools).
		Where("chain_id = ?", int64(chainID)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	return pools, nil
}

// InsertSwaps stores swap events; duplicates by (chain, tx, log index) are
// silently dropped so re-ingestion is idempotent.
func (s *Store) InsertSwaps(ctx context.Context, swaps []dao.SwapDao) (int, error) {
	if len(swaps) == 0 {
		return 0, nil
	}
	res, err := s.db.NewInsert().
		Model(&swaps).
		On("CONFLICT (chain_id, tx_hash, log_index) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to insert swaps: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// Price series
// =============================================================================

// PricePoint is one stored series row in domain terms.
type PricePoint struct {
	TokenID  int64
	Value    decimal.Decimal
	Low      decimal.Decimal
	High     decimal.Decimal
	BucketTS time.Time
}

// StoreSeries writes a batch of observations into one granularity. Each
// observation's timestamp is floored to the bucket boundary; a write is
// emitted only when no prior row exists for the token at or before that
// bucket or the value changed (change suppression). Writes are atomic
// row-level upserts: an existing row for the same bucket gets its value
// overwritten and its low/high widened. A failure for one token is logged
// and does not block the rest of the batch; the number of rows written is
// returned.
func (s *Store) StoreSeries(ctx context.Context, g Granularity, observations []pricesource.Observation) (int, error) {
	written := 0
	for _, obs := range observations {
		bucket := g.Truncate(obs.AsOf)

		prior, err := s.latestValueAt(ctx, g, obs.TokenID, bucket)
		if err != nil {
			s.writeFailed(g, obs, "read prior row", err)
			continue
		}
		if !shouldWrite(prior, obs.Value) {
			continue
		}

		if err := s.upsertPoint(ctx, g, obs.TokenID, obs.Value, bucket); err != nil {
			s.writeFailed(g, obs, "upsert", err)
			continue
		}
		written++
	}
	metrics.SeriesRowsWritten.WithLabelValues(g.String()).Add(float64(written))
	return written, nil
}

func (s *Store) writeFailed(g Granularity, obs pricesource.Observation, stage string, err error) {
	metrics.SeriesWriteFailures.WithLabelValues(g.String()).Inc()
	s.logger.Warn("Price series write failed",
		zap.String("granularity", g.String()),
		zap.Int64("token_id", obs.TokenID),
		zap.Uint64("chain_id", obs.ChainID),
		zap.String("token", obs.Address),
		zap.String("stage", stage),
		zap.Error(err))
}

// latestValueAt returns the value of the most recent stored row for the
// token at or before the bucket, or nil when the token has no history yet.
func (s *Store) latestValueAt(ctx context.Context, g Granularity, tokenID int64, bucket time.Time) (*decimal.Decimal, error) {
	var raw string
	var err error

	switch g {
	case Minute:
		row := new(dao.PriceMinuteDao)
		err = s.latestRowQuery(row, tokenID, bucket).Scan(ctx)
		raw = row.Value
	case Hour:
		row := new(dao.PriceHourDao)
		err = s.latestRowQuery(row, tokenID, bucket).Scan(ctx)
		raw = row.Value
	case Day:
		row := new(dao.PriceDayDao)
		err = s.latestRowQuery(row, tokenID, bucket).Scan(ctx)
		raw = row.Value
	default:
		return nil, fmt.Errorf("unknown granularity %d", g)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("stored value %q: %w", raw, err)
	}
	return &value, nil
}

func (s *Store) latestRowQuery(model any, tokenID int64, bucket time.Time) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(model).
		Where("token_id = ?", tokenID).
		Where("bucket_ts <= ?", bucket).
		Order("bucket_ts DESC").
		Limit(1)
}

// upsertPoint writes one series row as a single conflict-resolving statement
// keyed on (token_id, bucket_ts): inserts carry high = low = value, and a
// conflicting row for the same bucket has its value replaced and its bounds
// widened in place.
func (s *Store) upsertPoint(ctx context.Context, g Granularity, tokenID int64, value decimal.Decimal, bucket time.Time) error {
	v := value.String()

	var insert *bun.InsertQuery
	var alias string
	switch g {
	case Minute:
		insert = s.db.NewInsert().Model(&dao.PriceMinuteDao{
			TokenID: tokenID, Value: v, Low: v, High: v, BucketTS: bucket,
		})
		alias = "pm"
	case Hour:
		insert = s.db.NewInsert().Model(&dao.PriceHourDao{
			TokenID: tokenID, Value: v, Low: v, High: v, BucketTS: bucket,
		})
		alias = "ph"
	case Day:
		insert = s.db.NewInsert().Model(&dao.PriceDayDao{
			TokenID: tokenID, Value: v, Low: v, High: v, BucketTS: bucket,
		})
		alias = "pd"
	default:
		return fmt.Errorf("unknown granularity %d", g)
	}

	_, err := insert.
		On("CONFLICT (token_id, bucket_ts) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set(fmt.Sprintf("high = GREATEST(%s.high, EXCLUDED.value)", alias)).
		Set(fmt.Sprintf("low = LEAST(%s.low, EXCLUDED.value)", alias)).
		Exec(ctx)
	return err
}

// =============================================================================
// Read side
// =============================================================================

// LatestPrice returns the most recent stored price for a token, preferring
// the finest granularity that has data.
func (s *Store) LatestPrice(ctx context.Context, tokenID int64) (*PricePoint, error) {
	for _, g := range Granularities {
		point, err := s.latestPoint(ctx, g, tokenID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return point, nil
	}
	return nil, ErrNotFound
}

func (s *Store) latestPoint(ctx context.Context, g Granularity, tokenID int64) (*PricePoint, error) {
	var err error
	var tid int64
	var value, low, high string
	var bucket time.Time

	switch g {
	case Minute:
		row := new(dao.PriceMinuteDao)
		err = s.db.NewSelect().Model(row).
			Where("token_id = ?", tokenID).
			Order("bucket_ts DESC").
			Limit(1).
			Scan(ctx)
		tid, value, low, high, bucket = row.TokenID, row.Value, row.Low, row.High, row.BucketTS
	case Hour:
		row := new(dao.PriceHourDao)
		err = s.db.NewSelect().Model(row).
			Where("token_id = ?", tokenID).
			Order("bucket_ts DESC").
			Limit(1).
			Scan(ctx)
		tid, value, low, high, bucket = row.TokenID, row.Value, row.Low, row.High, row.BucketTS
	case Day:
		row := new(dao.PriceDayDao)
		err = s.db.NewSelect().Model(row).
			Where("token_id = ?", tokenID).
			Order("bucket_ts DESC").
			Limit(1).
			Scan(ctx)
		tid, value, low, high, bucket = row.TokenID, row.Value, row.Low, row.High, row.BucketTS
	default:
		return nil, fmt.Errorf("unknown granularity %d", g)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest price: %w", err)
	}
	return newPricePoint(tid, value, low, high, bucket)
}

// SeriesRange returns the stored rows for one token and granularity inside
// [from, to], oldest first, capped at limit rows.
func (s *Store) SeriesRange(ctx context.Context, g Granularity, tokenID int64, from, to time.Time, limit int) ([]PricePoint, error) {
	if limit <= 0 {
		limit = 1000
	}

	var points []PricePoint
	appendRow := func(tid int64, value, low, high string, bucket time.Time) error {
		point, err := newPricePoint(tid, value, low, high, bucket)
		if err != nil {
			return err
		}
		points = append(points, *point)
		return nil
	}

	switch g {
	case Minute:
		var rows []dao.PriceMinuteDao
		if err := s.rangeQuery(&rows, tokenID, from, to, limit).Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to read minute series: %w", err)
		}
		for _, r := range rows {
			if err := appendRow(r.TokenID, r.Value, r.Low, r.High, r.BucketTS); err != nil {
				return nil, err
			}
		}
	case Hour:
		var rows []dao.PriceHourDao
		if err := s.rangeQuery(&rows, tokenID, from, to, limit).Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to read hour series: %w", err)
		}
		for _, r := range rows {
			if err := appendRow(r.TokenID, r.Value, r.Low, r.High, r.BucketTS); err != nil {
				return nil, err
			}
		}
	case Day:
		var rows []dao.PriceDayDao
		if err := s.rangeQuery(&rows, tokenID, from, to, limit).Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to read day series: %w", err)
		}
		for _, r := range rows {
			if err := appendRow(r.TokenID, r.Value, r.Low, r.High, r.BucketTS); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown granularity %d", g)
	}

	return points, nil
}

func (s *Store) rangeQuery(model any, tokenID int64, from, to time.Time, limit int) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(model).
		Where("token_id = ?", tokenID).
		Where("bucket_ts >= ?", from).
		Where("bucket_ts <= ?", to).
		Order("bucket_ts ASC").
		Limit(limit)
}

func newPricePoint(tokenID int64, value, low, high string, bucket time.Time) (*PricePoint, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("stored value %q: %w", value, err)
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return nil, fmt.Errorf("stored low %q: %w", low, err)
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return nil, fmt.Errorf("stored high %q: %w", high, err)
	}
	return &PricePoint{TokenID: tokenID, Value: v, Low: l, High: h, BucketTS: bucket}, nil
}
