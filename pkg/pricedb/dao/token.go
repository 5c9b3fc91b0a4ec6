package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// TokenDao is a data access object that maps directly to the 'tokens' table
// in PostgreSQL. A token is unique per (chain, address) and is never deleted
// while referenced by prices or pools; metadata refresh only updates
// symbol/name/decimals/logo.
type TokenDao struct {
	bun.BaseModel `bun:"table:tokens,alias:t"`
	ID            int64     `bun:"id,pk,autoincrement"`
	ChainID       int64     `bun:"chain_id,notnull,unique:tokens_chain_address"`
	Address       string    `bun:"address,notnull,unique:tokens_chain_address,type:varchar(64)"`
	Symbol        string    `bun:"symbol,type:varchar(32)"`
	Name          string    `bun:"name,type:varchar(128)"`
	Decimals      uint8     `bun:"decimals,notnull"`
	LogoURI       *string   `bun:"logo_uri,type:varchar(512)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}
