package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/planweave/config"
	"github.com/mohammad-safakhou/planweave/internal/workflow"
)

// ErrWorkflowNotFound is returned for lookups of unknown workflow ids.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrNoCurrent is returned when the current-workflow slot is empty.
var ErrNoCurrent = errors.New("no current workflow set")

// WorkflowStore is the registry of saved workflows plus the single
// "current workflow" slot. Callers do read-modify-write at this level;
// concurrent writers to the same id are last-writer-wins.
type WorkflowStore interface {
	// Get returns one workflow; ErrWorkflowNotFound if absent.
	Get(ctx context.Context, id string) (*workflow.Workflow, error)

	// Upsert inserts or replaces a workflow keyed by its ID, stamping
	// UpdatedAt and, for new documents, CreatedAt.
	Upsert(ctx context.Context, wf *workflow.Workflow) error

	// Delete removes a workflow; ErrWorkflowNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns all stored workflows. The current slot is not listed.
	List(ctx context.Context) ([]workflow.Workflow, error)

	// SetCurrent replaces the current-workflow slot.
	SetCurrent(ctx context.Context, wf *workflow.Workflow) error

	// GetCurrent returns the current slot; ErrNoCurrent when empty.
	GetCurrent(ctx context.Context) (*workflow.Workflow, error)
}

// New builds the store named by the configured driver.
func New(ctx context.Context, cfg config.StorageConfig) (WorkflowStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
