// Package indexdb persists drained middleware events and sale aggregates so
// off-path consumers can query market history without holding up the call
// path.
package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

var ErrSaleNotFound = errors.New("sale not found")

// Store provides database operations for the market index
type Store struct {
	db *bun.DB
}

// NewStore creates a new postgres-backed index store
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateSchema creates the index tables if they do not exist
func (s *Store) CreateSchema(ctx context.Context) error {
	models := []interface{}{
		(*EventDao)(nil),
		(*SaleDao)(nil),
		(*MarketStatsDao)(nil),
	}
	for _, model := range models {
		_, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// InsertEvents writes a batch of drained events. Replaying an already indexed
// sequence number is a no-op, so the indexer can safely retry a batch.
func (s *Store) InsertEvents(ctx context.Context, events []EventDao) error {
	if len(events) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&events).
		On("CONFLICT (seq) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}

// LastIndexedSeq returns the highest event sequence number in the store,
// zero when the store is empty.
func (s *Store) LastIndexedSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.NewSelect().
		Model((*EventDao)(nil)).
		ColumnExpr("COALESCE(MAX(seq), 0)").
		Scan(ctx, &seq)
	if err != nil {
		return 0, fmt.Errorf("failed to query last indexed seq: %w", err)
	}
	return seq, nil
}

// IndexBatch writes a drained batch of events and the sales derived from it
// inside one transaction, so the indexer's resume position can never advance
// past a sale that was not recorded. Replayed rows are skipped without
// touching the aggregates, which makes re-draining a batch safe.
func (s *Store) IndexBatch(ctx context.Context, events []EventDao, sales []*SaleDao) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(events) > 0 {
			_, err := tx.NewInsert().
				Model(&events).
				On("CONFLICT (seq) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to insert events: %w", err)
			}
		}
		for _, sale := range sales {
			if err := recordSale(ctx, tx, sale); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordSale writes the sale row and folds its price into the aggregate
// stats inside one transaction.
func (s *Store) RecordSale(ctx context.Context, sale *SaleDao) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return recordSale(ctx, tx, sale)
	})
}

// recordSale inserts the sale and updates the aggregates. A sale that is
// already recorded is a no-op; the aggregates only count each listing once.
func recordSale(ctx context.Context, tx bun.Tx, sale *SaleDao) error {
	res, err := tx.NewInsert().
		Model(sale).
		On("CONFLICT (listing_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	if inserted, err := res.RowsAffected(); err == nil && inserted == 0 {
		return nil
	}

	stats := &MarketStatsDao{
		StatsKey:   GlobalStatsKey,
		SalesCount: 1,
		Volume:     sale.Price,
	}
	_, err = tx.NewInsert().
		Model(stats).
		On("CONFLICT (stats_key) DO UPDATE").
		Set("sales_count = market_stats.sales_count + 1").
		Set("volume = market_stats.volume + EXCLUDED.volume").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update market stats: %w", err)
	}
	return nil
}

// GetSale returns one recorded sale by listing id
func (s *Store) GetSale(ctx context.Context, listingID uint64) (*SaleDao, error) {
	sale := new(SaleDao)
	err := s.db.NewSelect().
		Model(sale).
		Where("listing_id = ?", listingID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return sale, nil
}

// GetStats returns the aggregate sales stats; zero values when no sale has
// been recorded yet.
func (s *Store) GetStats(ctx context.Context) (*MarketStatsDao, error) {
	stats := new(MarketStatsDao)
	err := s.db.NewSelect().
		Model(stats).
		Where("stats_key = ?", GlobalStatsKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &MarketStatsDao{StatsKey: GlobalStatsKey, Volume: decimal.Zero}, nil
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

// ListEvents returns indexed events with seq greater than after, oldest first
func (s *Store) ListEvents(ctx context.Context, after uint64, limit int) ([]EventDao, error) {
	var events []EventDao
	err := s.db.NewSelect().
		Model(&events).
		Where("seq > ?", after).
		Order("seq ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
