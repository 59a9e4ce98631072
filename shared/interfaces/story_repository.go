package interfaces

import (
	"context"

	"nexttale/shared/models"

	"github.com/google/uuid"
)

// StoryRepository reads and updates stories.
//
//go:generate mockery --name StoryRepository --output ./mocks --outpkg mocks --case=underscore
type StoryRepository interface {
	// GetByID returns models.ErrNotFound when the story does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)

	// UpdateGenerationStatus sets status and progress (clamped to 0..100).
	UpdateGenerationStatus(ctx context.Context, id uuid.UUID, status models.GenerationStatus, progress int) error

	// SetCoverImageIfEmpty writes the cover image only if none is set yet.
	// Returns true when this call set it.
	SetCoverImageIfEmpty(ctx context.Context, id uuid.UUID, imageURL string) (bool, error)

	// SetCoverVideoIfEmpty writes the cover video only if none is set yet.
	SetCoverVideoIfEmpty(ctx context.Context, id uuid.UUID, videoURL string) (bool, error)
}
