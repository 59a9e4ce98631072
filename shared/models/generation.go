package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// GeneratedChoice is one choice proposed by the text generator.
type GeneratedChoice struct {
	Text string `json:"text"`
	Hint string `json:"hint,omitempty"`
}

// Validate checks a single generated choice.
func (c GeneratedChoice) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Text, validation.Required, validation.Length(1, 500)),
		validation.Field(&c.Hint, validation.Length(0, 500)),
	)
}

// GenerationResult is what the text generator returns for one chapter.
type GenerationResult struct {
	Content    string            `json:"content"`
	IsEnding   bool              `json:"isEnding"`
	EndingType string            `json:"endingType,omitempty"`
	Choices    []GeneratedChoice `json:"choices"`
}

// Validate checks the shape of the result. The non-ending/no-choices rule is
// enforced separately so callers can report it with its own error.
func (r GenerationResult) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.By(notBlank)),
		validation.Field(&r.Choices),
	)
}

// EndingTypePtr returns the ending type for storage, nil when not an ending.
func (r GenerationResult) EndingTypePtr() *string {
	if !r.IsEnding || r.EndingType == "" {
		return nil
	}
	et := r.EndingType
	return &et
}

// GenerationRequest is the input of one text generation call.
type GenerationRequest struct {
	StoryContext    string
	UserChoice      string
	PreviousContent string
}

// ImageRequest is the input of one image generation call.
type ImageRequest struct {
	Prompt         string
	StyleReference string
	ArtStyle       string
	Story          StoryMeta
}

// VideoRequest is the input of one video generation call.
type VideoRequest struct {
	ImageURL string
	Prompt   string
	Story    StoryMeta
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}
