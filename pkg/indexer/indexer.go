// Package indexer drains the in-memory notification log into the postgres
// index store on a fixed interval, keeping sale aggregates queryable without
// touching the call path.
package indexer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/usikolabs/usiko-middleware/internal/metrics"
	"github.com/usikolabs/usiko-middleware/pkg/events"
	"github.com/usikolabs/usiko-middleware/pkg/indexdb"
)

// EventSource yields committed events after a given sequence number. The
// notification log implements it; reads must go through the host view lock,
// so the source is typically a closure over host.View.
type EventSource interface {
	Since(seq uint64) []events.Event
}

// Indexer periodically drains new events into the index store
type Indexer struct {
	source   EventSource
	store    *indexdb.Store
	interval time.Duration
	logger   *zap.Logger

	lastSeq uint64
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a new Indexer
func New(source EventSource, store *indexdb.Store, interval time.Duration, logger *zap.Logger) *Indexer {
	return &Indexer{
		source:   source,
		store:    store,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start resumes from the store's last indexed position and launches the
// periodic drain loop.
func (ix *Indexer) Start(ctx context.Context) error {
	seq, err := ix.store.LastIndexedSeq(ctx)
	if err != nil {
		return err
	}
	ix.lastSeq = seq

	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()

		ticker := time.NewTicker(ix.interval)
		defer ticker.Stop()

		ix.logger.Info("Started event indexer",
			zap.Duration("interval", ix.interval),
			zap.Uint64("resume_seq", seq))

		for {
			select {
			case <-ticker.C:
				drainCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if err := ix.Drain(drainCtx); err != nil {
					ix.logger.Error("Event drain failed", zap.Error(err))
					metrics.ErrorsTotal.WithLabelValues("indexer", "drain").Inc()
				}
				cancel()
			case <-ix.stopCh:
				ix.logger.Info("Stopping event indexer")
				return
			}
		}
	}()
	return nil
}

// Stop stops the drain loop and waits for it to exit
func (ix *Indexer) Stop() {
	close(ix.stopCh)
	ix.wg.Wait()
}

// Drain writes all events newer than the last indexed position to the store.
// Sold events additionally produce a sale row and fold into the aggregates.
// Events and sales land in one transaction and the position only advances
// after it commits, so a failed drain is retried in full on the next tick.
func (ix *Indexer) Drain(ctx context.Context) error {
	batch := ix.source.Since(ix.lastSeq)
	if len(batch) == 0 {
		return nil
	}

	daos := make([]indexdb.EventDao, 0, len(batch))
	var sales []*indexdb.SaleDao
	for _, ev := range batch {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			ix.logger.Warn("Failed to marshal event payload",
				zap.Uint64("seq", ev.Seq),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
			continue
		}
		daos = append(daos, indexdb.EventDao{
			Seq:       ev.Seq,
			EventID:   ev.ID,
			Kind:      string(ev.Kind),
			Payload:   payload,
			EmittedAt: ev.Timestamp,
		})
		if sold, ok := ev.Payload.(events.Sold); ok {
			sales = append(sales, &indexdb.SaleDao{
				ListingID:     sold.ListingID,
				Buyer:         sold.Buyer.Hex(),
				Price:         decimal.NewFromBigInt(sold.Price, 0),
				FeeAmount:     decimal.NewFromBigInt(sold.FeeAmount, 0),
				RoyaltyAmount: decimal.NewFromBigInt(sold.RoyaltyAmount, 0),
				SellerAmount:  decimal.NewFromBigInt(sold.SellerAmount, 0),
				SoldAt:        ev.Timestamp,
			})
		}
	}

	if err := ix.store.IndexBatch(ctx, daos, sales); err != nil {
		return err
	}

	for _, dao := range daos {
		metrics.IndexedEvents.WithLabelValues(dao.Kind).Inc()
	}

	ix.lastSeq = batch[len(batch)-1].Seq
	metrics.IndexerLag.Set(float64(ix.lastSeq))

	ix.logger.Debug("Drained events",
		zap.Int("count", len(daos)),
		zap.Uint64("last_seq", ix.lastSeq))

	return nil
}

// LastSeq returns the last drained sequence number
func (ix *Indexer) LastSeq() uint64 { return ix.lastSeq }
