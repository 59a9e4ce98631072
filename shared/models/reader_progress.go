package models

import (
	"time"

	"github.com/google/uuid"
)

// ReaderProgress is the persisted cursor of a reader in a story.
type ReaderProgress struct {
	UserID        uuid.UUID `db:"user_id" json:"userId"`
	StoryID       uuid.UUID `db:"story_id" json:"storyId"`
	CurrentNodeID uuid.UUID `db:"current_node_id" json:"currentNodeId"`
	PathTaken     []string  `db:"path_taken" json:"pathTaken"`
	IsCompleted   bool      `db:"is_completed" json:"isCompleted"`
	ChaptersRead  int       `db:"chapters_read" json:"chaptersRead"`
	ReadingPoints int       `db:"reading_points" json:"readingPoints"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}
