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
		log.Println("creating pools table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.PoolDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.PoolDao{}, "chain_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping pools table...")
		return mghelper.DropTables(ctx, db, &dao.PoolDao{})
	})
}
