package runstore

import (
	"context"
	"errors"

	"github.com/davebot/dave/internal/models"
)

// ErrNotFound is returned by Load for a missing or unreadable snapshot, so
// callers can distinguish "nothing to resume" from real storage failures.
var ErrNotFound = errors.New("run not found")

// Store persists crash-resumable run snapshots, keyed by run id. Runs are
// enumerable and deletable independent of any live orchestrator process.
type Store interface {
	// Save upserts the snapshot for state.ID. Safe to call repeatedly.
	Save(ctx context.Context, state *models.RunState) error
	// Load returns the snapshot for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*models.RunState, error)
	// List returns summaries of all persisted runs, most recent first.
	List(ctx context.Context) ([]*models.RunSummary, error)
	// Delete removes the snapshot for id. Deleting a missing run is an error.
	Delete(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}
