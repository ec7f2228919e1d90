package marketdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/usikolabs/usiko-middleware/pkg/indexdb"
	mghelper "github.com/usikolabs/usiko-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating market_events table...")
		if err := mghelper.CreateSchema(ctx, db, &indexdb.EventDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &indexdb.EventDao{}, "kind")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping market_events table...")
		return mghelper.DropTables(ctx, db, &indexdb.EventDao{})
	})
}
