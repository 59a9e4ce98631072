package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a reader session event.
type SessionEventType string

const (
	EventNarrationStopped SessionEventType = "narration_stopped"
	EventTransitionState  SessionEventType = "transition_state"
	EventChapterAppended  SessionEventType = "chapter_appended"
	EventTransitionFailed SessionEventType = "transition_failed"
	EventAssetReady       SessionEventType = "asset_ready"
	EventSessionReset     SessionEventType = "session_reset"
)

// AssetKind distinguishes image and video assets.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetVideo AssetKind = "video"
)

// SessionEvent is pushed to the reader's realtime connections.
type SessionEvent struct {
	Type         SessionEventType `json:"type"`
	StoryID      uuid.UUID        `json:"storyId"`
	ChapterIndex int              `json:"chapterIndex"`
	State        TransitionState  `json:"state,omitempty"`
	Chapter      *Chapter         `json:"chapter,omitempty"`
	NodeID       *uuid.UUID       `json:"nodeId,omitempty"`
	AssetKind    AssetKind        `json:"assetKind,omitempty"`
	AssetURL     string           `json:"assetUrl,omitempty"`
	Error        string           `json:"error,omitempty"`
	Retryable    bool             `json:"retryable,omitempty"`
	At           time.Time        `json:"at"`
}

// ChangeOp is the row operation reported by the change feed.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// ChangeEvent is one row change from the store's realtime feed.
type ChangeEvent struct {
	Table   string    `json:"table"`
	Op      ChangeOp  `json:"op"`
	ID      uuid.UUID `json:"id"`
	StoryID uuid.UUID `json:"story_id"`
	At      time.Time `json:"at"`
}

// ChangePredicate filters change events for a subscriber.
type ChangePredicate func(ChangeEvent) bool

// ForStory matches events belonging to one story.
func ForStory(storyID uuid.UUID) ChangePredicate {
	return func(ev ChangeEvent) bool { return ev.StoryID == storyID }
}
