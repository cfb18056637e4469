package core

import (
	"context"
	"sync"
)

// Registry is the process-wide cache of all school records, kept current by a
// push subscription against the record store. It is the single source of
// truth for every derived view; nothing writes into the cache except the
// store subscription (user mutations go store-ward, not cache-ward).
type Registry struct {
	store RecordStore

	mu       sync.RWMutex
	snapshot []School
}

// NewRegistry builds a registry over the given store.
func NewRegistry(store RecordStore) *Registry {
	return &Registry{store: store}
}

// FetchAll reads the full current set of schools once and primes the cache.
// A remote failure surfaces as a terminal store_unavailable error; no retry
// happens at this layer.
func (r *Registry) FetchAll(ctx context.Context) ([]School, error) {
	schools, err := r.store.FetchSchools(ctx)
	if err != nil {
		return nil, coreError(ErrCodeStoreUnavailable, "fetch schools", err)
	}
	snapshot := dedupeByID(schools)

	r.mu.Lock()
	r.snapshot = snapshot
	r.mu.Unlock()

	return CloneSnapshot(snapshot), nil
}

// Subscribe opens the push subscription. onUpdate receives either a fresh
// full snapshot or an error, never both; errors leave the cached snapshot in
// place. The returned unsubscribe func is idempotent.
func (r *Registry) Subscribe(onUpdate func(snapshot []School, err error)) (func(), error) {
	unsub, err := r.store.SubscribeSchools(func(snapshot []School, err error) {
		if err != nil {
			onUpdate(nil, coreError(ErrCodeSubscription, "schools subscription", err))
			return
		}
		deduped := dedupeByID(snapshot)

		r.mu.Lock()
		r.snapshot = deduped
		r.mu.Unlock()

		onUpdate(CloneSnapshot(deduped), nil)
	})
	if err != nil {
		return nil, coreError(ErrCodeSubscription, "open schools subscription", err)
	}

	var once sync.Once
	return func() { once.Do(unsub) }, nil
}

// Snapshot returns a copy of the current cached snapshot.
func (r *Registry) Snapshot() []School {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CloneSnapshot(r.snapshot)
}

// WriteCandidates sends one school's updated counts to the store. Failure is
// reported to the caller as write_rejected and is not retried here; the cache
// is untouched either way and converges through the subscription.
func (r *Registry) WriteCandidates(ctx context.Context, schoolID string, counts CategoryCounts) error {
	if err := r.store.WriteCandidates(ctx, schoolID, counts); err != nil {
		return coreError(ErrCodeWriteRejected, "write candidates", err)
	}
	return nil
}

// ResolveSelection re-resolves a previously selected school against a new
// snapshot. Same id present: the fresh record wins, so live count and name
// updates show through. Id missing: the previous value is retained unchanged.
// Selection is only ever cleared by explicit logout, never by a refresh, so a
// transient gap in the snapshot cannot drop an active session. The flip side
// is that a genuinely deleted school stays selected until logout.
func ResolveSelection(prev *School, snapshot []School) *School {
	if prev == nil {
		return nil
	}
	for _, s := range snapshot {
		if s.ID == prev.ID {
			fresh := s.Clone()
			return &fresh
		}
	}
	return prev
}

// dedupeByID keeps at most one school per id, last occurrence winning,
// preserving first-seen order.
func dedupeByID(schools []School) []School {
	index := make(map[string]int, len(schools))
	out := make([]School, 0, len(schools))
	for _, s := range schools {
		if i, seen := index[s.ID]; seen {
			out[i] = s.Clone()
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s.Clone())
	}
	return out
}
