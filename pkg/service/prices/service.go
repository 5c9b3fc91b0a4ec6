// Package prices exposes the stored price index over HTTP: latest prices,
// per-token history, and the pool inventory.
package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/dexlens/dexlens/pkg/app/errors"
	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricedb"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
)

// maxHistoryPoints caps one history response.
const maxHistoryPoints = 1000

// PriceReader is the read-side persistence surface the service needs.
type PriceReader interface {
	ListTokens(ctx context.Context, chainID uint64) ([]dao.TokenDao, error)
	GetToken(ctx context.Context, chainID uint64, address string) (*dao.TokenDao, error)
	ListPools(ctx context.Context, chainID uint64) ([]dao.PoolDao, error)
	LatestPrice(ctx context.Context, tokenID int64) (*pricedb.PricePoint, error)
	SeriesRange(ctx context.Context, g pricedb.Granularity, tokenID int64, from, to time.Time, limit int) ([]pricedb.PricePoint, error)
}

// TokenPrice is one token with its most recent stored price.
type TokenPrice struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	Price    string `json:"price"`
	AsOf     string `json:"as_of"`
}

// HistoryPoint is one series bucket in a history response.
type HistoryPoint struct {
	Value    string `json:"value"`
	Low      string `json:"low"`
	High     string `json:"high"`
	BucketTS string `json:"bucket_ts"`
}

// PoolView is one pool in the inventory response.
type PoolView struct {
	BaseAddress  string `json:"base_address"`
	QuoteAddress string `json:"quote_address"`
	PoolIndex    int    `json:"pool_index"`
}

// Service answers price index read queries.
type Service struct {
	registry *chain.Registry
	store    PriceReader
	logger   *zap.Logger
}

// NewService creates a price read service.
func NewService(registry *chain.Registry, store PriceReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// LatestPrices returns the latest stored price for every token on a chain.
// Tokens that have never been priced are omitted.
func (s *Service) LatestPrices(ctx context.Context, chainID uint64) ([]TokenPrice, error) {
	if _, ok := s.registry.Get(chainID); !ok {
		return nil, apperrors.ResourceNotFoundError(nil, fmt.Sprintf("unknown chain %d", chainID))
	}

	tokens, err := s.store.ListTokens(ctx, chainID)
	if err != nil {
		s.logger.Error("Failed to list tokens", zap.Uint64("chain_id", chainID), zap.Error(err))
		return nil, apperrors.GeneralError(err)
	}

	out := make([]TokenPrice, 0, len(tokens))
	for _, token := range tokens {
		point, err := s.store.LatestPrice(ctx, token.ID)
		if errors.Is(err, pricedb.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("Failed to read latest price",
				zap.Int64("token_id", token.ID), zap.Error(err))
			return nil, apperrors.GeneralError(err)
		}
		out = append(out, TokenPrice{
			Address:  token.Address,
			Symbol:   token.Symbol,
			Name:     token.Name,
			Decimals: token.Decimals,
			Price:    point.Value.String(),
			AsOf:     point.BucketTS.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// History returns the stored series for one token at one granularity over
// [from, to], oldest first.
func (s *Service) History(ctx context.Context, chainID uint64, address string, g pricedb.Granularity, from, to time.Time, limit int) ([]HistoryPoint, error) {
	if _, ok := s.registry.Get(chainID); !ok {
		return nil, apperrors.ResourceNotFoundError(nil, fmt.Sprintf("unknown chain %d", chainID))
	}
	if limit <= 0 || limit > maxHistoryPoints {
		limit = maxHistoryPoints
	}

	token, err := s.store.GetToken(ctx, chainID, chain.NormalizeAddress(address))
	if errors.Is(err, pricedb.ErrNotFound) {
		return nil, apperrors.ResourceNotFoundError(err, "token not found")
	}
	if err != nil {
		s.logger.Error("Failed to look up token", zap.String("address", address), zap.Error(err))
		return nil, apperrors.GeneralError(err)
	}

	points, err := s.store.SeriesRange(ctx, g, token.ID, from, to, limit)
	if err != nil {
		s.logger.Error("Failed to read series",
			zap.Int64("token_id", token.ID),
			zap.String("granularity", g.String()),
			zap.Error(err))
		return nil, apperrors.GeneralError(err)
	}

	out := make([]HistoryPoint, 0, len(points))
	for _, p := range points {
		out = append(out, HistoryPoint{
			Value:    p.Value.String(),
			Low:      p.Low.String(),
			High:     p.High.String(),
			BucketTS: p.BucketTS.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// Pools returns the pool inventory for a chain.
func (s *Service) Pools(ctx context.Context, chainID uint64) ([]PoolView, error) {
	if _, ok := s.registry.Get(chainID); !ok {
		return nil, apperrors.ResourceNotFoundError(nil, fmt.Sprintf("unknown chain %d", chainID))
	}

	pools, err := s.store.ListPools(ctx, chainID)
	if err != nil {
		s.logger.Error("Failed to list pools", zap.Uint64("chain_id", chainID), zap.Error(err))
		return nil, apperrors.GeneralError(err)
	}

	out := make([]PoolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, PoolView{
			BaseAddress:  p.BaseAddress,
			QuoteAddress: p.QuoteAddress,
			PoolIndex:    p.PoolIndex,
		})
	}
	return out, nil
}
