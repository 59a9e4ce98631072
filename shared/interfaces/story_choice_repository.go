package interfaces

import (
	"context"

	"nexttale/shared/models"

	"github.com/google/uuid"
)

// StoryChoiceRepository persists choices between nodes.
//
//go:generate mockery --name StoryChoiceRepository --output ./mocks --outpkg mocks --case=underscore
type StoryChoiceRepository interface {
	// ListByNode returns the visible choices of a node ordered by order index,
	// each enriched with its target node.
	ListByNode(ctx context.Context, nodeID uuid.UUID) ([]*models.StoryChoice, error)

	// GetByID returns models.ErrNotFound if the choice does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoryChoice, error)

	Create(ctx context.Context, params models.NewChoiceParams) (*models.StoryChoice, error)

	// UpdateTarget points a choice at another node.
	UpdateTarget(ctx context.Context, choiceID, toNodeID uuid.UUID) error
}
