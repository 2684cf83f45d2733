package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/planweave/config"
	"github.com/mohammad-safakhou/planweave/internal/workflow"
)

// PostgresStore keeps workflows in a workflows table, the definition as a
// JSONB document. The current slot is a single-row table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings the database. Schema is managed by
// migrations, not here.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection, for tests.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	var (
		definition           []byte
		createdAt, updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT definition, created_at, updated_at FROM workflows WHERE id = $1`, id).
		Scan(&definition, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeWorkflow(id, definition, createdAt, updatedAt)
}

func (s *PostgresStore) Upsert(ctx context.Context, wf *workflow.Workflow) error {
	now := time.Now().UTC()
	wf.UpdatedAt = now
	definition, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
INSERT INTO workflows (id, name, description, definition, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  description = EXCLUDED.description,
  definition = EXCLUDED.definition,
  updated_at = EXCLUDED.updated_at
RETURNING created_at
`, wf.ID, wf.Metadata.Name, wf.Description(), definition, now).Scan(&wf.CreatedAt)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, definition, created_at, updated_at FROM workflows ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workflow.Workflow
	for rows.Next() {
		var (
			id                   string
			definition           []byte
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &definition, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		wf, err := decodeWorkflow(id, definition, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, *wf)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetCurrent(ctx context.Context, wf *workflow.Workflow) error {
	wf.UpdatedAt = time.Now().UTC()
	definition, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO current_workflow (slot, definition, updated_at)
VALUES (1, $1, $2)
ON CONFLICT (slot) DO UPDATE SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at
`, definition, wf.UpdatedAt)
	return err
}

func (s *PostgresStore) GetCurrent(ctx context.Context) (*workflow.Workflow, error) {
	var definition []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT definition FROM current_workflow WHERE slot = 1`).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCurrent
	}
	if err != nil {
		return nil, err
	}
	var wf workflow.Workflow
	if err := json.Unmarshal(definition, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func decodeWorkflow(id string, definition []byte, createdAt, updatedAt time.Time) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := json.Unmarshal(definition, &wf); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	wf.ID = id
	wf.CreatedAt = createdAt
	wf.UpdatedAt = updatedAt
	return &wf, nil
}
