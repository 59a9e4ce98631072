package interfaces

import (
	"context"

	"nexttale/shared/models"

	"github.com/google/uuid"
)

// ReaderProgressRepository persists where a reader is in a story.
//
//go:generate mockery --name ReaderProgressRepository --output ./mocks --outpkg mocks --case=underscore
type ReaderProgressRepository interface {
	// Get returns models.ErrNotFound when the reader has not started the story.
	Get(ctx context.Context, userID, storyID uuid.UUID) (*models.ReaderProgress, error)

	// Save upserts the cursor fields (current node, path, completion).
	// Counters are left untouched.
	Save(ctx context.Context, progress *models.ReaderProgress) error

	// AddReading increments the chapters read and reading points counters.
	AddReading(ctx context.Context, userID, storyID uuid.UUID, chapters, points int) error
}
