// Package host models the execution environment the target ledger provides
// to the middleware's components: one call executes at a time, and a call
// either commits all of its writes or none of them.
//
// Components register with the host and expose snapshot/restore; a failing
// call is rewound across every registered component, so no component needs
// ad hoc cleanup code for partially applied effects.
package host

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Snapshotter captures and rewinds a component's full mutable state.
type Snapshotter interface {
	Snapshot() any
	Restore(any)
}

// Host serializes calls and provides whole-call atomicity over a set of
// registered components.
type Host struct {
	mu         sync.Mutex
	components []Snapshotter
	logger     *zap.Logger
}

// New creates a host over the given components. Order matters only for
// restore, which runs in reverse registration order.
func New(logger *zap.Logger, components ...Snapshotter) *Host {
	return &Host{components: components, logger: logger}
}

// Register adds a component to the host's transaction boundary.
func (h *Host) Register(c Snapshotter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components = append(h.components, c)
}

// Execute runs fn inside the host's transaction boundary. If fn returns an
// error, every registered component is restored to its pre-call state and the
// error is returned unchanged. Calls are serialized: a call observes only
// fully committed state from prior calls.
func (h *Host) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshots := make([]any, len(h.components))
	for i, c := range h.components {
		snapshots[i] = c.Snapshot()
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}

	for i := len(h.components) - 1; i >= 0; i-- {
		h.components[i].Restore(snapshots[i])
	}
	if h.logger != nil {
		h.logger.Debug("Call rolled back", zap.Error(err))
	}
	return err
}

// View runs fn under the host's lock without taking snapshots. Use it for
// read-only access; fn must not mutate component state.
func (h *Host) View(ctx context.Context, fn func(ctx context.Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(ctx)
}
