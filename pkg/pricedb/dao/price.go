package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// PriceMinuteDao maps to the 'prices_minute' table: one row per (token,
// minute bucket) with the current value and the running low/high inside the
// bucket. Values are numeric(38,18) handled as decimal strings; binary
// floats never touch these columns.
type PriceMinuteDao struct {
	bun.BaseModel `bun:"table:prices_minute,alias:pm"`
	ID            int64     `bun:"id,pk,autoincrement"`
	TokenID       int64     `bun:"token_id,notnull,unique:prices_minute_token_bucket"`
	Value         string    `bun:"value,notnull,type:numeric(38,18)"`
	Low           string    `bun:"low,notnull,type:numeric(38,18)"`
	High          string    `bun:"high,notnull,type:numeric(38,18)"`
	BucketTS      time.Time `bun:"bucket_ts,notnull,unique:prices_minute_token_bucket"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// PriceHourDao maps to the 'prices_hour' table; same shape as the minute
// series at hour granularity.
type PriceHourDao struct {
	bun.BaseModel `bun:"table:prices_hour,alias:ph"`
	ID            int64     `bun:"id,pk,autoincrement"`
	TokenID       int64     `bun:"token_id,notnull,unique:prices_hour_token_bucket"`
	Value         string    `bun:"value,notnull,type:numeric(38,18)"`
	Low           string    `bun:"low,notnull,type:numeric(38,18)"`
	High          string    `bun:"high,notnull,type:numeric(38,18)"`
	BucketTS      time.Time `bun:"bucket_ts,notnull,unique:prices_hour_token_bucket"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// PriceDayDao maps to the 'prices_day' table; same shape as the minute
// series at day granularity.
type PriceDayDao struct {
	bun.BaseModel `bun:"table:prices_day,alias:pd"`
	ID            int64     `bun:"id,pk,autoincrement"`
	TokenID       int64     `bun:"token_id,notnull,unique:prices_day_token_bucket"`
	Value         string    `bun:"value,notnull,type:numeric(38,18)"`
	Low           string    `bun:"low,notnull,type:numeric(38,18)"`
	High          string    `bun:"high,notnull,type:numeric(38,18)"`
	BucketTS      time.Time `bun:"bucket_ts,notnull,unique:prices_day_token_bucket"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}
