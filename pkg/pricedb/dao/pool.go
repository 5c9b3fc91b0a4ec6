package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// PoolDao is a data access object that maps directly to the 'pools' table in
// PostgreSQL. PoolIndex discriminates multiple pools for the same token pair
// (e.g. fee tiers); base/quote are stored in canonical order (lower-sorted
// address first).
type PoolDao struct {
	bun.BaseModel `bun:"table:pools,alias:p"`
	ID            int64     `bun:"id,pk,autoincrement"`
	ChainID       int64     `bun:"chain_id,notnull,unique:pools_chain_pair_index"`
	BaseAddress   string    `bun:"base_address,notnull,unique:pools_chain_pair_index,type:varchar(64)"`
	QuoteAddress  string    `bun:"quote_address,notnull,unique:pools_chain_pair_index,type:varchar(64)"`
	PoolIndex     int       `bun:"pool_index,notnull,unique:pools_chain_pair_index"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}
