package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationStatus is the lifecycle of a story's content generation.
type GenerationStatus string

const (
	GenerationStatusPending        GenerationStatus = "pending"
	GenerationStatusGenerating     GenerationStatus = "generating"
	GenerationStatusFullyGenerated GenerationStatus = "fully_generated"
	GenerationStatusFailed         GenerationStatus = "failed"
)

// Story is the root of a node/choice graph.
type Story struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	Title              string           `db:"title" json:"title"`
	Description        string           `db:"description" json:"description"`
	StoryContext       string           `db:"story_context" json:"storyContext"`
	ArtStyle           string           `db:"art_style" json:"artStyle"`
	GenerationStatus   GenerationStatus `db:"generation_status" json:"generationStatus"`
	GenerationProgress int              `db:"generation_progress" json:"generationProgress"`
	CoverImageURL      *string          `db:"cover_image_url" json:"coverImageUrl,omitempty"`
	CoverVideoURL      *string          `db:"cover_video_url" json:"coverVideoUrl,omitempty"`
	ImagePrompt        *string          `db:"image_prompt" json:"imagePrompt,omitempty"`
	LikesCount         int64            `db:"likes_count" json:"likesCount"`
	DislikesCount      int64            `db:"dislikes_count" json:"dislikesCount"`
	CreatorID          *uuid.UUID       `db:"creator_id" json:"creatorId,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// HasCover reports whether a cover image is already attached.
func (s *Story) HasCover() bool {
	return s.CoverImageURL != nil && *s.CoverImageURL != ""
}

// StyleSeed returns the story's own image prompt, or "".
func (s *Story) StyleSeed() string {
	if s.ImagePrompt == nil {
		return ""
	}
	return *s.ImagePrompt
}

// StoryMeta is the subset of story fields sent along with asset generation requests.
type StoryMeta struct {
	StoryID  uuid.UUID `json:"storyId"`
	Title    string    `json:"title"`
	ArtStyle string    `json:"artStyle"`
}

// Meta builds the asset request metadata for the story.
func (s *Story) Meta() StoryMeta {
	return StoryMeta{StoryID: s.ID, Title: s.Title, ArtStyle: s.ArtStyle}
}
