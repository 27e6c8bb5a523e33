package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calderon/vaspdb/internal/types"
)

// PGStore implements Store on a PostgreSQL connection pool. Concurrent
// workers share the pool; each operation checks out its own connection.
type PGStore struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables and counter row used by the store.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id      BIGINT PRIMARY KEY,
			dir_name     TEXT NOT NULL UNIQUE,
			state        TEXT NOT NULL,
			document     JSONB NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS counters (
			name  TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			id         UUID PRIMARY KEY,
			kind       TEXT NOT NULL,
			payload    BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO counters (name, value) VALUES ($1, 0) ON CONFLICT (name) DO NOTHING`,
		taskCounter,
	)
	if err != nil {
		return fmt.Errorf("failed to seed task counter: %w", err)
	}
	return nil
}

// FindByDirName looks up the task id for a directory URI.
func (s *PGStore) FindByDirName(ctx context.Context, dirName string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT task_id FROM tasks WHERE dir_name = $1`, dirName,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to look up %s: %w", dirName, err)
	}
	return id, true, nil
}

// NextTaskID atomically increments and returns the shared task counter.
func (s *PGStore) NextTaskID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value`,
		taskCounter,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment task counter: %w", err)
	}
	return id, nil
}

// Upsert implements the dedup-aware insert/update policy. The task id of an
// existing document is never reassigned.
func (s *PGStore) Upsert(ctx context.Context, doc *types.RunDocument, updateDuplicates bool) (int64, error) {
	existing, found, err := s.FindByDirName(ctx, doc.DirName)
	if err != nil {
		return 0, err
	}
	if found {
		if !updateDuplicates {
			return existing, &DuplicateError{DirName: doc.DirName, TaskID: existing}
		}
		doc.TaskID = existing
		raw, err := json.Marshal(doc)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal document: %w", err)
		}
		_, err = s.pool.Exec(ctx,
			`UPDATE tasks SET state = $1, document = $2, last_updated = NOW() WHERE dir_name = $3`,
			string(doc.State), raw, doc.DirName,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update %s: %w", doc.DirName, err)
		}
		return existing, nil
	}

	id, err := s.NextTaskID(ctx)
	if err != nil {
		return 0, err
	}
	doc.TaskID = id
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (task_id, dir_name, state, document, last_updated)
		 VALUES ($1, $2, $3, $4, NOW())`,
		id, doc.DirName, string(doc.State), raw,
	)
	if err != nil {
		// a concurrent worker won the first insert; the unique index on
		// dir_name rejects ours
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			winner, found, lookupErr := s.FindByDirName(ctx, doc.DirName)
			if lookupErr == nil && found {
				return winner, &DuplicateError{DirName: doc.DirName, TaskID: winner}
			}
		}
		return 0, fmt.Errorf("failed to insert %s: %w", doc.DirName, err)
	}
	return id, nil
}

// PutBlob stores a large payload out of line and returns its reference id.
func (s *PGStore) PutBlob(ctx context.Context, kind string, payload []byte) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blobs (id, kind, payload) VALUES ($1, $2, $3)`,
		id, kind, payload,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to store %s blob: %w", kind, err)
	}
	return id, nil
}

// GetBlob retrieves an out-of-line payload by reference id.
func (s *PGStore) GetBlob(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM blobs WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("blob %s not found", id)
		}
		return nil, fmt.Errorf("failed to get blob %s: %w", id, err)
	}
	return payload, nil
}
