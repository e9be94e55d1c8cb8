package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType names what happened to a learner's progress.
type EventType string

const (
	EventBootstrapped      EventType = "progress_bootstrapped"
	EventMaterialCompleted EventType = "material_completed"
	EventSaveFailed        EventType = "progress_save_failed"
)

// Event is one entry in a learner's progress history.
type Event struct {
	LearnerID string
	Type      EventType
	At        Cursor // material the event is about; zero for save failures
	Next      Cursor // cursor after a completion
	Rule      Rule
	Err       string
	Time      time.Time
}

// BootstrappedEvent records the seed placed on an empty record.
func BootstrappedEvent(learnerID string, seed Cursor) Event {
	return Event{LearnerID: learnerID, Type: EventBootstrapped, At: seed}
}

// CompletedEvent records a completion that changed the record.
func CompletedEvent(learnerID string, tr Transition) Event {
	return Event{
		LearnerID: learnerID,
		Type:      EventMaterialCompleted,
		At:        tr.From,
		Next:      tr.To,
		Rule:      tr.Rule,
	}
}

// SaveFailedEvent records a save that failed after every retry.
func SaveFailedEvent(learnerID string, err error) Event {
	e := Event{LearnerID: learnerID, Type: EventSaveFailed}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

func (e Event) validate() error {
	switch {
	case e.LearnerID == "":
		return errors.New("event learner id is required")
	case e.Type == "":
		return errors.New("event type is required")
	}
	return nil
}

// EventLogger records progress events.
type EventLogger interface {
	LogEvent(ctx context.Context, e Event) error
}

// NopEventLogger drops every event.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error { return nil }

// MemoryEventLogger keeps events in memory.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, e Event) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

// Events returns every logged event in order.
func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// Of returns the logged events of one type in order.
func (l *MemoryEventLogger) Of(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// PostgresEventLogger appends events to the progress_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, e Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if err := e.validate(); err != nil {
		return err
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO progress_events
			(learner_id, event_type, course, topic, sub_topic, material_id, next_material_id, rule, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.LearnerID, string(e.Type),
		e.At.Course, e.At.Topic, e.At.SubTopic, e.At.MaterialID,
		e.Next.MaterialID, e.Rule.String(), e.Err, e.Time,
	); err != nil {
		return fmt.Errorf("insert %s event: %w", e.Type, err)
	}

	slog.Debug("progress event logged", "type", e.Type, "learner_id", e.LearnerID)
	return nil
}
