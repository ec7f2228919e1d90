package marketdb

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/usikolabs/usiko-middleware/pkg/indexdb"
	mghelper "github.com/usikolabs/usiko-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating market_stats table...")
		if err := mghelper.CreateSchema(ctx, db, &indexdb.MarketStatsDao{}); err != nil {
			return err
		}

		// Seed the global aggregate row so readers never see a missing row.
		_, err := db.NewInsert().
			Model(&indexdb.MarketStatsDao{
				StatsKey: indexdb.GlobalStatsKey,
				Volume:   decimal.Zero,
			}).
			On("CONFLICT (stats_key) DO NOTHING").
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping market_stats table...")
		return mghelper.DropTables(ctx, db, &indexdb.MarketStatsDao{})
	})
}
