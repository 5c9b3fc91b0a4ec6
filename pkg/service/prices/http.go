package prices

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/dexlens/dexlens/pkg/app/errors"
	apphttp "github.com/dexlens/dexlens/pkg/app/http"
	"github.com/dexlens/dexlens/pkg/cache"
	"github.com/dexlens/dexlens/pkg/pricedb"
)

// Handler serves the read API routes.
type Handler struct {
	service *Service
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewHandler creates the read API handler.
func NewHandler(service *Service, cache *cache.Cache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		cache:   cache,
		logger:  logger,
	}
}

// Routes mounts the read API onto a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/prices/latest", apphttp.HandleError(h.latest))
	r.Get("/prices/{address}/history", apphttp.HandleError(h.history))
	r.Get("/pools", apphttp.HandleError(h.pools))
	return r
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) error {
	chainID, err := parseChainID(r)
	if err != nil {
		return err
	}

	cacheKey := fmt.Sprintf("prices:latest:%d", chainID)
	var cached []TokenPrice
	if h.cache.GetJSON(r.Context(), cacheKey, &cached) {
		return writeJSON(w, cached)
	}

	prices, err := h.service.LatestPrices(r.Context(), chainID)
	if err != nil {
		return err
	}

	h.cache.SetJSON(r.Context(), cacheKey, prices)
	return writeJSON(w, prices)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) error {
	chainID, err := parseChainID(r)
	if err != nil {
		return err
	}
	address := chi.URLParam(r, "address")

	granularity := pricedb.Hour
	if name := r.URL.Query().Get("granularity"); name != "" {
		granularity, err = pricedb.ParseGranularity(name)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid granularity")
		}
	}

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid from timestamp")
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid to timestamp")
		}
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return apperrors.BadRequestError(err, "invalid limit")
		}
	}

	points, err := h.service.History(r.Context(), chainID, address, granularity, from, to, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, points)
}

func (h *Handler) pools(w http.ResponseWriter, r *http.Request) error {
	chainID, err := parseChainID(r)
	if err != nil {
		return err
	}

	cacheKey := fmt.Sprintf("pools:%d", chainID)
	var cached []PoolView
	if h.cache.GetJSON(r.Context(), cacheKey, &cached) {
		return writeJSON(w, cached)
	}

	pools, err := h.service.Pools(r.Context(), chainID)
	if err != nil {
		return err
	}

	h.cache.SetJSON(r.Context(), cacheKey, pools)
	return writeJSON(w, pools)
}

func parseChainID(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("chain_id")
	if raw == "" {
		return 0, apperrors.BadRequestError(nil, "chain_id is required")
	}
	chainID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.BadRequestError(err, "invalid chain_id")
	}
	return chainID, nil
}

func writeJSON(w http.ResponseWriter, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(payload)
}
