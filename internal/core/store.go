package core

import "context"

// RecordStore is the remote persistent store the sync core runs against.
// Implementations live in internal/store; the core only needs these
// primitives.
//
// Subscriptions push until their unsubscribe func is called. Both delivery
// and failure arrive through the callback so the caller can tell "data
// changed" from "subscription broken" without losing the handler. Callbacks
// may be invoked from arbitrary goroutines but are FIFO per subscription.
type RecordStore interface {
	// FetchSchools reads the full current set of school records once.
	FetchSchools(ctx context.Context) ([]School, error)

	// SubscribeSchools opens a durable push subscription delivering the full
	// snapshot on every remote change. The returned unsubscribe func is
	// idempotent and releases all remote resources.
	SubscribeSchools(cb func(snapshot []School, err error)) (unsubscribe func(), err error)

	// WriteCandidates replaces one school's category counts.
	WriteCandidates(ctx context.Context, schoolID string, counts CategoryCounts) error

	// SubscribeMessages opens a push subscription delivering chat messages
	// one at a time: first the retained backlog, then new appends, in
	// store-delivery order. Duplicate delivery is possible.
	SubscribeMessages(cb func(msg Message, err error)) (unsubscribe func(), err error)

	// AppendMessage appends a chat message. The store assigns the id and the
	// timestamp; the passed Timestamp and ID fields are ignored.
	AppendMessage(ctx context.Context, msg Message) (id string, err error)
}
