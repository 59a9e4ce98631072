package interfaces

import (
	"context"

	"nexttale/shared/models"
)

// StoryGenerator produces the next chapter of text and its choices.
//
//go:generate mockery --name StoryGenerator --output ./mocks --outpkg mocks --case=underscore
type StoryGenerator interface {
	GenerateStory(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// ImageGenerator renders an illustration and returns its public URL.
// Quota or billing refusals yield ("", nil).
//
//go:generate mockery --name ImageGenerator --output ./mocks --outpkg mocks --case=underscore
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req models.ImageRequest) (string, error)
}

// VideoGenerator animates an image and returns the video URL, or "" when unavailable.
//
//go:generate mockery --name VideoGenerator --output ./mocks --outpkg mocks --case=underscore
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req models.VideoRequest) (string, error)
}

// AssetStore keeps binary assets and hands out public URLs.
type AssetStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}
