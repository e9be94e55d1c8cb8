package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-learn/internal/platform/database"
)

const dbTimeout = 5 * time.Second

// Migration creates the tables used by PostgresStore and PostgresEventLogger.
var Migration = database.Migration{
	Name: "0001_progress",
	SQL: `
CREATE TABLE IF NOT EXISTS learner_progress (
	learner_id    TEXT PRIMARY KEY,
	course_status JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS progress_events (
	id               BIGSERIAL PRIMARY KEY,
	learner_id       TEXT NOT NULL,
	event_type       TEXT NOT NULL,
	course           TEXT NOT NULL DEFAULT '',
	topic            TEXT NOT NULL DEFAULT '',
	sub_topic        TEXT NOT NULL DEFAULT '',
	material_id      TEXT NOT NULL DEFAULT '',
	next_material_id TEXT NOT NULL DEFAULT '',
	rule             TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS progress_events_learner_idx ON progress_events (learner_id, created_at);
`,
}

// PostgresStore is a PostgreSQL-backed Store. The record is kept as one JSONB
// document per learner; saves merge into the stored document inside a
// transaction so concurrent writers cannot clear each other's flags.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) FetchProgress(ctx context.Context, learnerID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT course_status FROM learner_progress WHERE learner_id = $1`,
		learnerID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}

	return decodeRecord(data)
}

func (s *PostgresStore) SaveProgress(ctx context.Context, learnerID string, r Record) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save progress: %w", err)
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx,
		`SELECT course_status FROM learner_progress WHERE learner_id = $1 FOR UPDATE`,
		learnerID,
	).Scan(&data)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lock progress: %w", err)
	}

	stored := Record{}
	if len(data) > 0 {
		if stored, err = decodeRecord(data); err != nil {
			return err
		}
	}

	merged, err := json.Marshal(stored.Merge(r))
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO learner_progress (learner_id, course_status, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (learner_id)
		 DO UPDATE SET course_status = EXCLUDED.course_status, updated_at = NOW()`,
		learnerID,
		string(merged),
	); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

func decodeRecord(data []byte) (Record, error) {
	r := Record{}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	if r == nil {
		r = Record{}
	}
	return r, nil
}
