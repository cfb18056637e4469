package sqlite

import "sync"

// subscriber pairs a delivery channel with its stop signal. Delivery runs on
// a dedicated goroutine per subscriber so one slow callback cannot stall the
// writer or other subscribers, while order stays FIFO per subscription.
type subscriber[T any] struct {
	ch   chan T
	done chan struct{}
}

// broadcast fans values out to any number of subscribers.
type broadcast[T any] struct {
	mu   sync.Mutex
	subs map[int]*subscriber[T]
	next int
}

func newBroadcast[T any]() *broadcast[T] {
	return &broadcast[T]{subs: make(map[int]*subscriber[T])}
}

// subscribe registers cb and returns an idempotent unsubscribe func. After
// unsubscribe returns, cb may still be finishing at most one in-flight
// delivery; no new deliveries start.
func (b *broadcast[T]) subscribe(cb func(T)) func() {
	sub := &subscriber[T]{
		ch:   make(chan T, 64),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case v := <-sub.ch:
				cb(v)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// publish delivers v to every current subscriber in FIFO order per
// subscriber. Blocks on a full buffer rather than dropping; an unsubscribing
// consumer unblocks the writer via its done channel.
func (b *broadcast[T]) publish(v T) {
	b.mu.Lock()
	subs := make([]*subscriber[T], 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- v:
		case <-sub.done:
		}
	}
}
