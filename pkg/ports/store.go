package ports

import (
	"context"

	"github.com/aretw0/codeflow/pkg/domain"
)

// RecordingStore defines the interface for persisting trace recordings.
// A recording carries the replay cursor, so saving it also saves session progress.
type RecordingStore interface {
	// Save persists the recording under its ID.
	Save(ctx context.Context, rec *domain.Recording) error

	// Load retrieves a recording by ID.
	// Returns domain.ErrRecordingNotFound if the recording does not exist.
	Load(ctx context.Context, id string) (*domain.Recording, error)

	// Delete removes a recording. Deleting a missing recording is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored recordings.
	List(ctx context.Context) ([]string, error)
}
