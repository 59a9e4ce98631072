package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxChoicesPerNode bounds how many choices are materialized for one node.
const MaxChoicesPerNode = 5

// StoryChoice links two nodes.
type StoryChoice struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	FromNodeID      uuid.UUID  `db:"from_node_id" json:"fromNodeId"`
	ToNodeID        uuid.UUID  `db:"to_node_id" json:"toNodeId"`
	ChoiceText      string     `db:"choice_text" json:"choiceText"`
	ConsequenceHint *string    `db:"consequence_hint" json:"consequenceHint,omitempty"`
	OrderIndex      int        `db:"order_index" json:"orderIndex"`
	IsVisible       bool       `db:"is_visible" json:"isVisible"`
	CreatedBy       *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`

	// TargetNode is filled by enriched reads; it is not a column.
	TargetNode *StoryNode `db:"-" json:"targetNode,omitempty"`
}

// NewChoiceParams are the inputs for creating a choice row.
type NewChoiceParams struct {
	FromNodeID      uuid.UUID
	ToNodeID        uuid.UUID
	ChoiceText      string
	ConsequenceHint *string
	OrderIndex      int
	CreatedBy       *uuid.UUID
}
