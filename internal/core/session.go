package core

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/catalog"
)

// Session owns one client's synchronized state: the registry snapshot, the
// chat window, the selected school and the current error. All cached state is
// mutated only by reaction handlers (subscription callbacks and intents),
// serialized by the session mutex; views hand out copies.
//
// Lifecycle: Activate fetches the initial snapshot and, only on success,
// opens both push subscriptions. Deactivate tears them down exactly once and
// is safe to call even if activation never completed. After Deactivate
// returns no reaction handler mutates session state again.
type Session struct {
	store  RecordStore
	cat    *catalog.Catalog
	window int
	log    *zerolog.Logger

	failures chan *CoreError

	mu       sync.RWMutex
	active   bool
	schools  []School
	selected *School
	curErr   *CoreError
	stream   *Stream
	unsubReg func()
}

// NewSession builds a session over the given store and catalog. window <= 0
// falls back to DefaultWindow.
func NewSession(store RecordStore, cat *catalog.Catalog, window int, logger *zerolog.Logger) *Session {
	return &Session{
		store:    store,
		cat:      cat,
		window:   window,
		log:      logger,
		failures: make(chan *CoreError, 16),
	}
}

// Activate performs the initial fetch and opens the subscriptions. An initial
// fetch failure is terminal: the error is recorded, no subscription is
// opened, and the caller must re-activate from scratch after fixing the
// cause. Activating an already active session is a no-op.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	registry := NewRegistry(s.store)
	snapshot, err := registry.FetchAll(ctx)
	if err != nil {
		ce := err.(*CoreError)
		s.mu.Lock()
		s.curErr = ce
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("initial fetch failed")
		return ce
	}

	stream := NewStream(s.store, s.window)

	s.mu.Lock()
	s.active = true
	s.schools = snapshot
	s.selected = ResolveSelection(s.selected, snapshot)
	s.curErr = nil
	s.stream = stream
	s.mu.Unlock()

	unsubReg, err := registry.Subscribe(s.onSchools)
	if err != nil {
		s.report(err.(*CoreError))
	} else {
		s.mu.Lock()
		s.unsubReg = unsubReg
		s.mu.Unlock()
	}

	if err := stream.Subscribe(s.onMessages); err != nil {
		s.report(err.(*CoreError))
	}

	s.log.Info().Int("schools", len(snapshot)).Msg("session activated")
	return nil
}

// Deactivate closes both subscriptions. Idempotent; a session that never
// activated is a no-op. Cached data stays readable through the views.
func (s *Session) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	unsubReg := s.unsubReg
	s.unsubReg = nil
	stream := s.stream
	s.mu.Unlock()

	if unsubReg != nil {
		unsubReg()
	}
	if stream != nil {
		stream.Close()
	}
	s.log.Info().Msg("session deactivated")
}

// onSchools is the registry reaction handler.
func (s *Session) onSchools(snapshot []School, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	if err != nil {
		s.curErr = err.(*CoreError)
		s.pushFailureLocked(s.curErr)
		return
	}
	s.schools = snapshot
	s.selected = ResolveSelection(s.selected, snapshot)
	s.curErr = nil
}

// onMessages is the stream reaction handler. The stream owns the window; the
// session only tracks subscription errors here.
func (s *Session) onMessages(_ []Message, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.curErr = err.(*CoreError)
	s.pushFailureLocked(s.curErr)
}

// Select sets the selected school, typically right after login. The identity
// collaborator decides who logs in; the session only tracks the reference and
// re-resolves it on every snapshot.
func (s *Session) Select(school School) {
	clone := school.Clone()
	s.mu.Lock()
	s.selected = &clone
	s.mu.Unlock()
}

// RequestLogout clears the selection unconditionally. This is the only way a
// selection is ever cleared.
func (s *Session) RequestLogout() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// RequestCandidateDelta adjusts one school's count for a category by delta,
// clamped at zero, and writes the result to the store. The write is
// fire-and-forget: the call returns once the intent is validated, and a
// remote failure surfaces through Failures and the current error value. The
// cache is never written locally; it converges through the subscription.
func (s *Session) RequestCandidateDelta(schoolID string, cat catalog.Category, delta int) error {
	if !catalog.Known(cat) {
		return coreError(ErrCodeInvalidInput, "unknown category "+string(cat), nil)
	}

	s.mu.RLock()
	var counts CategoryCounts
	found := false
	for _, school := range s.schools {
		if school.ID == schoolID {
			counts = school.Candidates.Clone()
			found = true
			break
		}
	}
	s.mu.RUnlock()

	if !found {
		return coreError(ErrCodeInvalidInput, "unknown school "+schoolID, nil)
	}

	next := ApplyDelta(counts, cat, delta)
	go func() {
		if err := s.store.WriteCandidates(context.Background(), schoolID, next); err != nil {
			ce := coreError(ErrCodeWriteRejected, "write candidates", err)
			s.log.Warn().Err(err).Str("school_id", schoolID).Msg("candidate write rejected")
			s.report(ce)
		}
	}()
	return nil
}

// RequestSendMessage appends a chat message. Empty content is rejected
// synchronously and never reaches the store; the remote append itself is
// fire-and-forget with failures surfacing through Failures.
func (s *Session) RequestSendMessage(schoolID, schoolName, content string) error {
	s.mu.RLock()
	stream := s.stream
	s.mu.RUnlock()
	if stream == nil {
		return coreError(ErrCodeWriteRejected, "session not activated", nil)
	}

	// Validate here so the caller gets invalid_input synchronously; the
	// remote append must not block the intent.
	if strings.TrimSpace(content) == "" {
		return coreError(ErrCodeInvalidInput, "empty message content", nil)
	}

	go func() {
		if err := stream.Send(context.Background(), schoolID, schoolName, content); err != nil {
			ce := err.(*CoreError)
			s.log.Warn().Err(err).Str("school_id", schoolID).Msg("message append rejected")
			s.report(ce)
		}
	}()
	return nil
}

// Schools returns a copy of the current registry snapshot.
func (s *Session) Schools() []School {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CloneSnapshot(s.schools)
}

// Selected returns the current selection resolution, or nil when logged out.
func (s *Session) Selected() *School {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	clone := s.selected.Clone()
	return &clone
}

// Messages returns a copy of the retained chat window, oldest first.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	stream := s.stream
	s.mu.RUnlock()
	if stream == nil {
		return nil
	}
	return stream.Messages()
}

// Report derives the cross-school report from the current snapshot.
func (s *Session) Report() Report {
	s.mu.RLock()
	snapshot := CloneSnapshot(s.schools)
	s.mu.RUnlock()
	return BuildReport(snapshot, s.cat)
}

// Err returns the current error value, or nil. Terminal errors replace the
// whole view behind a retry; advisory ones show alongside stale data.
func (s *Session) Err() *CoreError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curErr
}

// Failures delivers asynchronous write and subscription failures as they
// happen. The channel is buffered and never blocks a reaction; a consumer
// that falls behind loses older entries, the current error view does not.
func (s *Session) Failures() <-chan *CoreError {
	return s.failures
}

func (s *Session) report(ce *CoreError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curErr = ce
	s.pushFailureLocked(ce)
}

func (s *Session) pushFailureLocked(ce *CoreError) {
	select {
	case s.failures <- ce:
	default:
		// Drop oldest so the latest failure is always deliverable.
		select {
		case <-s.failures:
		default:
		}
		select {
		case s.failures <- ce:
		default:
		}
	}
}
