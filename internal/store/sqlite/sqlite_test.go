package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/catalog"
	"github.com/kurspanel/kurspanel-server/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := zerolog.Nop()
	s, err := New(":memory:", &logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTwoSchools(t *testing.T, s *Store) {
	t.Helper()
	err := s.SeedSchools(context.Background(), []Seed{
		{ID: "s1", Name: "Kurs 1", PasswordHash: "hash1"},
		{ID: "s2", Name: "Kurs 2", PasswordHash: "hash2"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestFetchSchoolsAfterSeed(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)

	schools, err := s.FetchSchools(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(schools) != 2 {
		t.Fatalf("expected 2 schools, got %d", len(schools))
	}
	if schools[0].Candidates == nil || len(schools[0].Candidates) != 0 {
		t.Fatalf("expected empty counts, got %v", schools[0].Candidates)
	}
}

func TestSeedKeepsExistingCounts(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)
	ctx := context.Background()

	counts := core.CategoryCounts{catalog.CategoryB: 4}
	if err := s.WriteCandidates(ctx, "s1", counts); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Re-seeding with a new name must not reset counts.
	err := s.SeedSchools(ctx, []Seed{{ID: "s1", Name: "Kurs 1 Yeni", PasswordHash: "hash1"}})
	if err != nil {
		t.Fatalf("re-seed: %v", err)
	}

	school, _, err := s.SchoolCredentials(ctx, "s1")
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if school.Name != "Kurs 1 Yeni" {
		t.Fatalf("name not refreshed: %q", school.Name)
	}
	if school.Candidates[catalog.CategoryB] != 4 {
		t.Fatalf("counts lost on re-seed: %v", school.Candidates)
	}
}

func TestWriteCandidatesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)
	ctx := context.Background()

	counts := core.CategoryCounts{
		catalog.CategoryB:      2,
		catalog.CategoryFarkA1: 1,
	}
	if err := s.WriteCandidates(ctx, "s1", counts); err != nil {
		t.Fatalf("write: %v", err)
	}

	schools, err := s.FetchSchools(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, school := range schools {
		if school.ID != "s1" {
			continue
		}
		if school.Candidates[catalog.CategoryB] != 2 || school.Candidates[catalog.CategoryFarkA1] != 1 {
			t.Fatalf("counts not persisted: %v", school.Candidates)
		}
		return
	}
	t.Fatal("school s1 not found")
}

func TestWriteCandidatesUnknownSchool(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)

	err := s.WriteCandidates(context.Background(), "ghost", core.CategoryCounts{catalog.CategoryB: 1})
	if err == nil {
		t.Fatal("expected error for unknown school")
	}
}

func TestWriteCandidatesRejectsUnknownCategory(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)

	err := s.WriteCandidates(context.Background(), "s1", core.CategoryCounts{catalog.Category("E"): 1})
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestSubscribeSchoolsDeliversInitialAndUpdates(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)

	snapshots := make(chan []core.School, 8)
	unsub, err := s.SubscribeSchools(func(snapshot []core.School, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		snapshots <- snapshot
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	initial := mustSnapshot(t, snapshots)
	if len(initial) != 2 {
		t.Fatalf("expected initial snapshot of 2, got %d", len(initial))
	}

	if err := s.WriteCandidates(context.Background(), "s1",
		core.CategoryCounts{catalog.CategoryB: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	updated := mustSnapshot(t, snapshots)
	found := false
	for _, school := range updated {
		if school.ID == "s1" && school.Candidates[catalog.CategoryB] == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("updated snapshot missing new counts: %+v", updated)
	}
}

func TestAppendMessageAssignsIDAndFansOut(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)

	received := make(chan core.Message, 8)
	unsub, err := s.SubscribeMessages(func(msg core.Message, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	id, err := s.AppendMessage(context.Background(), core.Message{
		SchoolID:   "s1",
		SchoolName: "Kurs 1",
		Content:    "merhaba",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id == "" {
		t.Fatal("no id assigned")
	}

	msg := mustMessage(t, received)
	if msg.ID != id || msg.Content != "merhaba" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("no timestamp assigned")
	}
}

func TestAppendMessageRejectsEmptyContent(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AppendMessage(context.Background(), core.Message{
		SchoolID: "s1", SchoolName: "Kurs 1", Content: "   ",
	}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestSubscribeMessagesReplaysBacklogOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(ctx, core.Message{
			SchoolID:   "s1",
			SchoolName: "Kurs 1",
			Content:    fmt.Sprintf("mesaj %d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		// Millisecond timestamps order the backlog.
		time.Sleep(2 * time.Millisecond)
	}

	received := make(chan core.Message, 8)
	unsub, err := s.SubscribeMessages(func(msg core.Message, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	for i := 0; i < 3; i++ {
		msg := mustMessage(t, received)
		if want := fmt.Sprintf("mesaj %d", i); msg.Content != want {
			t.Fatalf("backlog out of order: got %q, want %q", msg.Content, want)
		}
	}
}

func TestUnsubscribeStopsDeliveries(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)

	received := make(chan core.Message, 8)
	unsub, err := s.SubscribeMessages(func(msg core.Message, err error) {
		if err == nil {
			received <- msg
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	unsub()
	unsub()

	if _, err := s.AppendMessage(context.Background(), core.Message{
		SchoolID: "s1", SchoolName: "Kurs 1", Content: "geç mesaj",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case msg := <-received:
		t.Fatalf("delivery after unsubscribe: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchoolCredentials(t *testing.T) {
	s := newTestStore(t)
	seedTwoSchools(t, s)

	school, hash, err := s.SchoolCredentials(context.Background(), "s2")
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if school.ID != "s2" || school.Name != "Kurs 2" || hash != "hash2" {
		t.Fatalf("unexpected credentials: %+v %q", school, hash)
	}

	if _, _, err := s.SchoolCredentials(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown school")
	}
}

func mustSnapshot(t *testing.T, ch <-chan []core.School) []core.School {
	t.Helper()
	select {
	case snapshot := <-ch:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func mustMessage(t *testing.T, ch <-chan core.Message) core.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return core.Message{}
	}
}
