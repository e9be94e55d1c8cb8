package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

var (
	// ErrTransitionInProgress is returned when a completion arrives while the
	// previous one is still being applied or saved.
	ErrTransitionInProgress = errors.New("a completion is already in progress")
	// ErrStaleCursor is returned when a completion names a material other than
	// the one the cursor points at.
	ErrStaleCursor = errors.New("completion does not match the selected material")
)

// Session is one learner's dashboard state. It is safe for concurrent use.
type Session struct {
	learnerID string
	svc       *Service

	mu      sync.Mutex
	engine  *progress.Engine
	pending bool // the record holds flags the store has not acknowledged

	completing atomic.Bool
}

func newSession(svc *Service, learnerID string, engine *progress.Engine) *Session {
	return &Session{learnerID: learnerID, svc: svc, engine: engine}
}

// LearnerID returns the learner the session belongs to.
func (s *Session) LearnerID() string {
	return s.learnerID
}

// bootstrap seeds an empty record and persists the seed.
func (s *Session) bootstrap(ctx context.Context) {
	s.mu.Lock()
	seeded := s.engine.Bootstrap()
	var snapshot progress.Record
	var cur progress.Cursor
	if seeded {
		snapshot = s.engine.Record()
		cur, _ = s.engine.Cursor()
	}
	s.mu.Unlock()

	if !seeded {
		return
	}
	s.svc.logEvent(ctx, progress.BootstrappedEvent(s.learnerID, cur))
	s.persist(ctx, snapshot)
}

// View returns the current dashboard state.
func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := buildView(s.learnerID, s.engine, s.svc.contentBaseURL)
	v.Pending = s.pending
	v.Completing = s.completing.Load()
	return v
}

// Pending reports whether the session holds progress the store has not saved.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// TakeCourse moves the cursor to the first material of a started topic.
func (s *Session) TakeCourse(course, topic string) (ViewState, error) {
	s.mu.Lock()
	err := s.engine.TakeCourse(course, topic)
	s.mu.Unlock()
	if err != nil {
		return ViewState{}, err
	}
	return s.View(), nil
}

// Select moves the cursor to an unlocked material.
func (s *Session) Select(course, topic, subTopic string, index int) (ViewState, error) {
	s.mu.Lock()
	err := s.engine.Select(course, topic, subTopic, index)
	s.mu.Unlock()
	if err != nil {
		return ViewState{}, err
	}
	return s.View(), nil
}

// Complete marks the selected material completed, advances the cursor and
// saves the record. Only one completion runs at a time; a second one is
// rejected with ErrTransitionInProgress until the first has been saved.
// When expectedMaterialID is set it must match the cursor material.
//
// A save that still fails after retries leaves the new state in place and
// marks the session pending; the next save or Flush sends the full record.
func (s *Session) Complete(ctx context.Context, expectedMaterialID string) (progress.Transition, error) {
	if !s.completing.CompareAndSwap(false, true) {
		return progress.Transition{}, ErrTransitionInProgress
	}
	defer s.completing.Store(false)

	s.mu.Lock()
	if cur, ok := s.engine.Cursor(); ok && expectedMaterialID != "" && cur.MaterialID != expectedMaterialID {
		s.mu.Unlock()
		return progress.Transition{}, fmt.Errorf("cursor is at %q, not %q: %w", cur.MaterialID, expectedMaterialID, ErrStaleCursor)
	}
	tr, err := s.engine.Complete()
	if err != nil {
		s.mu.Unlock()
		return progress.Transition{}, err
	}
	save := tr.Changed || s.pending
	snapshot := s.engine.Record()
	s.mu.Unlock()

	if tr.Changed {
		s.svc.logEvent(ctx, progress.CompletedEvent(s.learnerID, tr))
	}
	if save {
		s.persist(ctx, snapshot)
	}
	return tr, nil
}

// Absorb merges flags saved elsewhere into the session's record.
func (s *Session) Absorb(r progress.Record) {
	s.mu.Lock()
	s.engine.Absorb(r)
	s.mu.Unlock()
}

// Refresh re-fetches the catalog and swaps it in. A source backed by files is
// re-read first. The cursor follows its material; an empty record is
// bootstrapped against the new catalog.
func (s *Session) Refresh(ctx context.Context) (ViewState, error) {
	if r, ok := s.svc.catalog.(catalog.Reloader); ok {
		if err := r.Reload(); err != nil {
			return ViewState{}, fmt.Errorf("reload catalog: %w", err)
		}
	}
	entries, err := s.svc.catalog.FetchCatalog(ctx, s.learnerID)
	if err != nil {
		return ViewState{}, fmt.Errorf("refresh catalog: %w", err)
	}
	cat := catalog.Normalize(entries)

	s.mu.Lock()
	s.engine.SetCatalog(cat)
	s.mu.Unlock()

	s.bootstrap(ctx)
	return s.View(), nil
}

// Flush retries the save of unsaved progress. It is a no-op when nothing is
// pending.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.engine.Record()
	s.mu.Unlock()

	return s.persist(ctx, snapshot)
}

// persist saves snapshot and updates the pending flag. The save outlives the
// caller's cancellation so a dropped request does not lose progress.
func (s *Session) persist(ctx context.Context, snapshot progress.Record) error {
	err := s.svc.save(context.WithoutCancel(ctx), s.learnerID, snapshot)

	s.mu.Lock()
	if err != nil {
		s.pending = true
	} else if snapshot.Covers(s.engine.Record()) {
		s.pending = false
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("failed to save progress",
			"learner_id", s.learnerID,
			"error", err,
		)
		s.svc.logEvent(ctx, progress.SaveFailedEvent(s.learnerID, err))
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
