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
		log.Println("creating tokens table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.TokenDao{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &dao.TokenDao{}, "chain_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping tokens table...")
		return mghelper.DropTables(ctx, db, &dao.TokenDao{})
	})
}
