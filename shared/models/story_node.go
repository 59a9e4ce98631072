package models

import (
	"time"

	"github.com/google/uuid"
)

// StartNodeKey is the logical key of every story's first node.
const StartNodeKey = "start"

// StoryNode is one chapter of text in a story graph. A node with empty content
// is a placeholder that only exists as the target of a choice.
type StoryNode struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	StoryID        uuid.UUID  `db:"story_id" json:"storyId"`
	NodeKey        string     `db:"node_key" json:"nodeKey"`
	Content        string     `db:"content" json:"content"`
	IsPlaceholder  bool       `db:"is_placeholder" json:"isPlaceholder"`
	IsEnding       bool       `db:"is_ending" json:"isEnding"`
	EndingType     *string    `db:"ending_type" json:"endingType,omitempty"`
	SequenceOrder  int        `db:"sequence_order" json:"sequenceOrder"`
	ParentChoiceID *uuid.UUID `db:"parent_choice_id" json:"parentChoiceId,omitempty"`
	ImageURL       *string    `db:"image_url" json:"imageUrl,omitempty"`
	VideoURL       *string    `db:"video_url" json:"videoUrl,omitempty"`
	AudioURL       *string    `db:"audio_url" json:"audioUrl,omitempty"`
	ImagePrompt    *string    `db:"image_prompt" json:"imagePrompt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsResolved reports whether the node has readable content.
func (n *StoryNode) IsResolved() bool {
	return n != nil && n.Content != "" && !n.IsPlaceholder
}

// HasImage reports whether an image is attached.
func (n *StoryNode) HasImage() bool {
	return n.ImageURL != nil && *n.ImageURL != ""
}

// HasVideo reports whether a video is attached.
func (n *StoryNode) HasVideo() bool {
	return n.VideoURL != nil && *n.VideoURL != ""
}

// NewNodeParams are the inputs for creating a node row.
type NewNodeParams struct {
	StoryID        uuid.UUID
	NodeKey        string
	Content        string
	IsEnding       bool
	EndingType     *string
	SequenceOrder  int
	ParentChoiceID *uuid.UUID
}

// NodeResolution is the content written into a placeholder when it resolves.
type NodeResolution struct {
	Content    string
	IsEnding   bool
	EndingType *string
}
