package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeStore is an in-memory RecordStore for core tests. Pushes happen
// synchronously from the test goroutine so tests stay deterministic.
type fakeStore struct {
	mu sync.Mutex

	schools   []School
	fetchErr  error
	writeErr  error
	appendErr error

	schoolSubs map[int]func([]School, error)
	msgSubs    map[int]func(Message, error)
	nextSub    int
	nextMsg    int

	writes   []CategoryCounts
	appended []Message
	echo     bool // echo appended messages back through the subscription
}

func newFakeStore(schools ...School) *fakeStore {
	return &fakeStore{
		schools:    schools,
		schoolSubs: make(map[int]func([]School, error)),
		msgSubs:    make(map[int]func(Message, error)),
	}
}

func (f *fakeStore) FetchSchools(context.Context) ([]School, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return CloneSnapshot(f.schools), nil
}

func (f *fakeStore) SubscribeSchools(cb func([]School, error)) (func(), error) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.schoolSubs[id] = cb
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.schoolSubs, id)
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) WriteCandidates(_ context.Context, schoolID string, counts CategoryCounts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, counts.Clone())
	for i := range f.schools {
		if f.schools[i].ID == schoolID {
			f.schools[i].Candidates = counts.Clone()
		}
	}
	return nil
}

func (f *fakeStore) SubscribeMessages(cb func(Message, error)) (func(), error) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.msgSubs[id] = cb
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.msgSubs, id)
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, msg Message) (string, error) {
	f.mu.Lock()
	if f.appendErr != nil {
		f.mu.Unlock()
		return "", f.appendErr
	}
	f.nextMsg++
	msg.ID = fmt.Sprintf("m%d", f.nextMsg)
	msg.Timestamp = time.Now()
	f.appended = append(f.appended, msg)
	echo := f.echo
	f.mu.Unlock()
	if echo {
		f.pushMessage(msg)
	}
	return msg.ID, nil
}

func (f *fakeStore) pushSchools(snapshot []School) {
	f.mu.Lock()
	f.schools = CloneSnapshot(snapshot)
	cbs := make([]func([]School, error), 0, len(f.schoolSubs))
	for _, cb := range f.schoolSubs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(CloneSnapshot(snapshot), nil)
	}
}

func (f *fakeStore) pushSchoolsErr(err error) {
	f.mu.Lock()
	cbs := make([]func([]School, error), 0, len(f.schoolSubs))
	for _, cb := range f.schoolSubs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(nil, err)
	}
}

func (f *fakeStore) pushMessage(msg Message) {
	f.mu.Lock()
	cbs := make([]func(Message, error), 0, len(f.msgSubs))
	for _, cb := range f.msgSubs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(msg, nil)
	}
}

func (f *fakeStore) pushMessageErr(err error) {
	f.mu.Lock()
	cbs := make([]func(Message, error), 0, len(f.msgSubs))
	for _, cb := range f.msgSubs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(Message{}, err)
	}
}

func (f *fakeStore) schoolSubCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.schoolSubs)
}

func (f *fakeStore) msgSubCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgSubs)
}

func (f *fakeStore) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func msgAt(id string, ts time.Time) Message {
	return Message{
		ID:         id,
		SchoolID:   "s1",
		SchoolName: "Kurs 1",
		Content:    "msg " + id,
		Timestamp:  ts,
	}
}

// waitFor polls cond until it holds or the deadline passes. Fire-and-forget
// intents land on background goroutines, so a few session tests need it.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}
