// Package learner runs learner dashboard sessions: it sequences the catalog
// and progress fetches, owns each learner's progress engine, and persists
// every progress change.
package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

const (
	defaultSaveRetries         = 3
	defaultSaveInitialInterval = 200 * time.Millisecond
	defaultSaveMaxElapsed      = 10 * time.Second
)

// Config holds dependencies for the learner service.
type Config struct {
	Catalog             catalog.Source
	Store               progress.Store
	Events              progress.EventLogger
	ContentBaseURL      string
	SaveRetries         int           // retries after the first failed save; 0 means 3, negative means none
	SaveInitialInterval time.Duration // first backoff delay (default 200ms)
	SaveMaxElapsed      time.Duration // total time spent retrying one save (default 10s)
}

// Service hands out one Session per learner.
type Service struct {
	catalog             catalog.Source
	store               progress.Store
	events              progress.EventLogger
	contentBaseURL      string
	saveRetries         int
	saveInitialInterval time.Duration
	saveMaxElapsed      time.Duration

	sessions map[string]*Session
	loading  map[string]progress.Record // updates absorbed while a load is in flight
	mu       sync.Mutex
	loads    singleflight.Group
}

// NewService creates a learner service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	store := cfg.Store
	if store == nil {
		store = progress.NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = progress.NopEventLogger{}
	}
	retries := cfg.SaveRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultSaveRetries
	}
	initial := cfg.SaveInitialInterval
	if initial == 0 {
		initial = defaultSaveInitialInterval
	}
	maxElapsed := cfg.SaveMaxElapsed
	if maxElapsed == 0 {
		maxElapsed = defaultSaveMaxElapsed
	}

	return &Service{
		catalog:             cfg.Catalog,
		store:               store,
		events:              events,
		contentBaseURL:      cfg.ContentBaseURL,
		saveRetries:         retries,
		saveInitialInterval: initial,
		saveMaxElapsed:      maxElapsed,
		sessions:            make(map[string]*Session),
		loading:             make(map[string]progress.Record),
	}, nil
}

// Session returns the learner's session, loading it on first use.
// Concurrent first requests share one load. A session whose catalog or
// progress fetch failed is returned but not kept, so the next call retries.
func (s *Service) Session(ctx context.Context, learnerID string) (*Session, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner id is required")
	}

	s.mu.Lock()
	sess, ok := s.sessions[learnerID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	v, err, _ := s.loads.Do(learnerID, func() (any, error) {
		s.mu.Lock()
		existing, ok := s.sessions[learnerID]
		if !ok {
			s.loading[learnerID] = progress.Record{}
		}
		s.mu.Unlock()
		if ok {
			return existing, nil
		}

		sess, complete := s.load(context.WithoutCancel(ctx), learnerID)

		s.mu.Lock()
		absorbed := s.loading[learnerID]
		delete(s.loading, learnerID)
		if complete {
			s.sessions[learnerID] = sess
		}
		s.mu.Unlock()

		if !absorbed.Empty() {
			sess.Absorb(absorbed)
		}
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Absorb merges a record saved to the store by someone else into the
// learner's live session, including one still loading. Unsaved progress in the
// session is kept.
func (s *Service) Absorb(learnerID string, r progress.Record) {
	s.mu.Lock()
	sess, ok := s.sessions[learnerID]
	if !ok {
		if pending, loading := s.loading[learnerID]; loading {
			s.loading[learnerID] = pending.Merge(r)
		}
	}
	s.mu.Unlock()

	if ok {
		sess.Absorb(r)
	}
}

// Flush retries the save of every session holding unsaved progress.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("learner %s: %w", sess.learnerID, err))
		}
	}
	return errors.Join(errs...)
}

// load fetches the catalog, then the progress record, then bootstraps. It
// reports false when either fetch failed.
func (s *Service) load(ctx context.Context, learnerID string) (*Session, bool) {
	entries, err := s.catalog.FetchCatalog(ctx, learnerID)
	if err != nil {
		slog.Error("failed to fetch catalog", "learner_id", learnerID, "error", err)
		return newSession(s, learnerID, progress.NewEngine(catalog.Normalize(nil), nil)), false
	}
	cat := catalog.Normalize(entries)

	rec, err := s.store.FetchProgress(ctx, learnerID)
	if err != nil {
		slog.Error("failed to fetch progress", "learner_id", learnerID, "error", err)
		return newSession(s, learnerID, progress.NewEngine(cat, nil)), false
	}

	sess := newSession(s, learnerID, progress.NewEngine(cat, rec))
	sess.bootstrap(ctx)

	slog.Info("learner session loaded",
		"learner_id", learnerID,
		"courses", len(cat.Courses),
		"progress_empty", rec.Empty(),
	)
	return sess, true
}

// save persists a record, retrying temporary failures with exponential
// backoff. Errors that declare themselves non-temporary are not retried.
func (s *Service) save(ctx context.Context, learnerID string, r progress.Record) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.saveInitialInterval
	b.MaxElapsedTime = s.saveMaxElapsed

	attempt := 0
	op := func() error {
		attempt++
		err := s.store.SaveProgress(ctx, learnerID, r)
		if err == nil {
			return nil
		}
		var temp interface{ Temporary() bool }
		if errors.As(err, &temp) && !temp.Temporary() {
			return backoff.Permanent(err)
		}
		slog.Warn("progress save attempt failed",
			"learner_id", learnerID,
			"attempt", attempt,
			"error", err,
		)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.saveRetries)), ctx)
	return backoff.Retry(op, policy)
}

func (s *Service) logEvent(ctx context.Context, e progress.Event) {
	if err := s.events.LogEvent(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("failed to log progress event", "type", e.Type, "learner_id", e.LearnerID, "error", err)
	}
}
