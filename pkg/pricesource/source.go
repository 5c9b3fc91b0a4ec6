// Package pricesource produces per-chain token price observations, either
// from a subgraph that quotes USD prices directly or by resolving prices
// over the chain's pool graph against its reference stablecoin.
package pricesource

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Token identifies one token a source is asked to price.
type Token struct {
	ID       int64
	Address  string
	Decimals uint8
}

// Observation is one resolved (token, stable-denominated price) tuple at a
// single as-of instant. Observations are ephemeral; they are consumed by the
// price series store and never persisted directly.
type Observation struct {
	TokenID int64
	ChainID uint64
	Address string
	Value   decimal.Decimal
	AsOf    time.Time
}

// Source produces the price observations for one chain. A token missing
// from the result simply has no price this cycle; implementations must skip,
// not zero-fill.
type Source interface {
	ChainID() uint64
	Fetch(ctx context.Context, tokens []Token, asOf time.Time) ([]Observation, error)
}
