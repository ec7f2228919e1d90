// Package royalty keeps the per-collection royalty records the marketplace
// consults at sale time. A collection has at most one record; setting a new
// one replaces the old entirely.
package royalty

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/usikolabs/usiko-middleware/pkg/events"
)

// MaxBps is the basis-points denominator: 10000 bps = 100%.
const MaxBps = 10000

var (
	ErrUnauthorized = errors.New("caller is not the collection owner")
	ErrInvalidBps   = errors.New("royalty basis points out of range")
)

// Config is one collection's royalty record.
type Config struct {
	Receiver common.Address
	Bps      uint16
}

// CollectionOwners resolves the recorded owner of a collection handle. The
// token facade implements this.
type CollectionOwners interface {
	CollectionOwner(collection common.Address) (common.Address, bool)
}

// Registry stores royalty configs keyed by collection handle.
type Registry struct {
	owners  CollectionOwners
	events  events.Emitter
	logger  *zap.Logger
	configs map[common.Address]Config
}

// NewRegistry creates an empty registry backed by the given ownership oracle.
func NewRegistry(owners CollectionOwners, emitter events.Emitter, logger *zap.Logger) *Registry {
	return &Registry{
		owners:  owners,
		events:  emitter,
		logger:  logger,
		configs: make(map[common.Address]Config),
	}
}

// SetRoyalty upserts the collection's royalty record. Only the collection's
// recorded owner may call it; bps must not exceed MaxBps.
func (r *Registry) SetRoyalty(_ context.Context, caller, collection, receiver common.Address, bps uint16) error {
	if bps > MaxBps {
		return ErrInvalidBps
	}
	owner, ok := r.owners.CollectionOwner(collection)
	if !ok || caller != owner {
		return ErrUnauthorized
	}

	r.configs[collection] = Config{Receiver: receiver, Bps: bps}

	r.events.Emit(events.KindRoyaltySet, events.RoyaltySet{
		Collection: collection,
		Receiver:   receiver,
		Bps:        bps,
	})
	r.logger.Info("Royalty set",
		zap.String("collection", collection.Hex()),
		zap.String("receiver", receiver.Hex()),
		zap.Uint16("bps", bps))

	return nil
}

// RoyaltyOf returns the collection's royalty record; zero values when unset.
func (r *Registry) RoyaltyOf(collection common.Address) (common.Address, uint16) {
	cfg := r.configs[collection]
	return cfg.Receiver, cfg.Bps
}

type registrySnapshot struct {
	configs map[common.Address]Config
}

// Snapshot captures the registry state for host-level rollback.
func (r *Registry) Snapshot() any {
	snap := &registrySnapshot{configs: make(map[common.Address]Config, len(r.configs))}
	for coll, cfg := range r.configs {
		snap.configs[coll] = cfg
	}
	return snap
}

// Restore rewinds the registry to a previously captured snapshot.
func (r *Registry) Restore(v any) {
	snap := v.(*registrySnapshot)
	r.configs = make(map[common.Address]Config, len(snap.configs))
	for coll, cfg := range snap.configs {
		r.configs[coll] = cfg
	}
}
