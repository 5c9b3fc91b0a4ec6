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
		log.Println("creating swaps table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.SwapDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.SwapDao{}, "pool_id", "block_time")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping swaps table...")
		return mghelper.DropTables(ctx, db, &dao.SwapDao{})
	})
}
