package interfaces

import (
	"context"

	"nexttale/shared/models"

	"github.com/google/uuid"
)

// StoryNodeRepository persists story nodes.
//
//go:generate mockery --name StoryNodeRepository --output ./mocks --outpkg mocks --case=underscore
type StoryNodeRepository interface {
	// GetByID returns models.ErrNotFound if the node does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoryNode, error)

	// GetByKey returns models.ErrNotFound if the story has no node with that key.
	GetByKey(ctx context.Context, storyID uuid.UUID, nodeKey string) (*models.StoryNode, error)

	// Create inserts a node. Empty content creates a placeholder.
	// Returns models.ErrAlreadyExists when (story, key) is taken.
	Create(ctx context.Context, params models.NewNodeParams) (*models.StoryNode, error)

	// Resolve fills a placeholder. It only succeeds once per node; a false
	// result means the node was already resolved (or is gone).
	Resolve(ctx context.Context, id uuid.UUID, res models.NodeResolution) (bool, error)

	// SetParentChoice links a node to the choice that leads to it.
	SetParentChoice(ctx context.Context, nodeID, choiceID uuid.UUID) error

	// SetImage stores the generated image URL and the prompt that produced it.
	SetImage(ctx context.Context, id uuid.UUID, imageURL, imagePrompt string) error

	// SetVideo stores the generated video URL.
	SetVideo(ctx context.Context, id uuid.UUID, videoURL string) error
}
