package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// SwapDao maps to the 'swaps' table: ingested swap events, deduplicated by
// (chain, transaction, log index) so re-ingesting a block range is
// idempotent.
type SwapDao struct {
	bun.BaseModel `bun:"table:swaps,alias:s"`
	ID            int64     `bun:"id,pk,autoincrement"`
	ChainID       int64     `bun:"chain_id,notnull,unique:swaps_chain_tx_log"`
	PoolID        int64     `bun:"pool_id,notnull"`
	TxHash        string    `bun:"tx_hash,notnull,unique:swaps_chain_tx_log,type:varchar(80)"`
	LogIndex      int       `bun:"log_index,notnull,unique:swaps_chain_tx_log"`
	AmountBase    string    `bun:"amount_base,notnull,type:numeric(38,18)"`
	AmountQuote   string    `bun:"amount_quote,notnull,type:numeric(38,18)"`
	AmountUSD     *string   `bun:"amount_usd,nullzero,type:numeric(38,18)"`
	BlockTime     time.Time `bun:"block_time,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}
