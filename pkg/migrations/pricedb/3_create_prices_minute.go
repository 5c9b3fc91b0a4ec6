package pricedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/dexlens/dexlens/pkg/pgutil/migrations"
	"github.com/dexlens/dexlens/pkg/pricedb/dao"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating prices_minute table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.PriceMinuteDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.PriceMinuteDao{}, "bucket_ts")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping prices_minute table...")
		return mghelper.DropTables(ctx, db, &dao.PriceMinuteDao{})
	})
}
