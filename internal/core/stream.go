package core

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// DefaultWindow is the number of most-recent messages retained locally.
const DefaultWindow = 100

// streamState names the lifecycle states of the message subscription.
type streamState int

const (
	streamUnsubscribed streamState = iota
	streamSubscribing
	streamLive
	streamClosed
)

// Stream is the bounded, deduplicated, timestamp-ordered chat log. It is fed
// one message at a time by the store's push subscription, which guarantees
// FIFO arrival but no ordering relative to message timestamps.
//
// Subscription errors do not close the stream: the transport underneath is
// expected to retry, this layer only forwards the error and stays live.
// Closed is terminal and reached only through Close.
type Stream struct {
	store  RecordStore
	window int

	mu       sync.Mutex
	state    streamState
	messages []Message
	seen     map[string]struct{}
	unsub    func()
	onChange func(window []Message, err error)
}

// NewStream builds a stream retaining at most window messages. A window of
// zero or less falls back to DefaultWindow.
func NewStream(store RecordStore, window int) *Stream {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Stream{
		store:  store,
		window: window,
		seen:   make(map[string]struct{}),
	}
}

// Subscribe opens the push subscription. onChange receives a copy of the full
// retained window after every accepted message, or an error when the
// subscription reports one. onChange runs with the stream locked and must not
// call back into the stream. Subscribing twice or after Close is an error.
func (s *Stream) Subscribe(onChange func(window []Message, err error)) error {
	s.mu.Lock()
	if s.state != streamUnsubscribed {
		s.mu.Unlock()
		return coreError(ErrCodeSubscription, "stream already subscribed or closed", nil)
	}
	s.state = streamSubscribing
	s.onChange = onChange
	s.mu.Unlock()

	unsub, err := s.store.SubscribeMessages(s.deliver)
	if err != nil {
		s.mu.Lock()
		s.state = streamUnsubscribed
		s.onChange = nil
		s.mu.Unlock()
		return coreError(ErrCodeSubscription, "open messages subscription", err)
	}

	s.mu.Lock()
	if s.state == streamClosed {
		// Closed while the subscribe call was in flight.
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsub = unsub
	if s.state == streamSubscribing {
		s.state = streamLive
	}
	s.mu.Unlock()
	return nil
}

// deliver is the subscription callback: dedup by id, insert, re-sort by
// timestamp (stable, so equal timestamps keep arrival order), trim to the
// window. Replaying any sequence of deliveries, duplicates included, lands on
// the same retained set. Holding the lock across onChange is what makes
// Close's "no callback afterwards" guarantee hold.
func (s *Stream) deliver(msg Message, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == streamClosed {
		return
	}
	if s.state == streamSubscribing {
		s.state = streamLive
	}

	if err != nil {
		if s.onChange != nil {
			s.onChange(nil, coreError(ErrCodeSubscription, "messages subscription", err))
		}
		return
	}

	if _, dup := s.seen[msg.ID]; dup {
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Timestamp.Before(s.messages[j].Timestamp)
	})
	if len(s.messages) > s.window {
		evicted := s.messages[:len(s.messages)-s.window]
		for _, m := range evicted {
			delete(s.seen, m.ID)
		}
		s.messages = append([]Message(nil), s.messages[len(s.messages)-s.window:]...)
	}

	if s.onChange != nil {
		s.onChange(s.copyWindowLocked(), nil)
	}
}

// Messages returns a copy of the retained window, oldest first.
func (s *Stream) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyWindowLocked()
}

// Send appends a message through the store. Blank content (after trimming) is
// rejected locally with invalid_input and never reaches the store. On success
// Send returns immediately; the message shows up in the window only once the
// subscription echoes it back, and the dedup by store id keeps the echo from
// doubling it.
func (s *Stream) Send(ctx context.Context, schoolID, schoolName, content string) error {
	if strings.TrimSpace(content) == "" {
		return coreError(ErrCodeInvalidInput, "empty message content", nil)
	}
	_, err := s.store.AppendMessage(ctx, Message{
		SchoolID:   schoolID,
		SchoolName: schoolName,
		Content:    content,
	})
	if err != nil {
		return coreError(ErrCodeWriteRejected, "append message", err)
	}
	return nil
}

// Close tears the subscription down. Idempotent and terminal: once Close
// returns, no onChange callback fires again.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return
	}
	s.state = streamClosed
	unsub := s.unsub
	s.unsub = nil
	s.onChange = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Stream) copyWindowLocked() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
