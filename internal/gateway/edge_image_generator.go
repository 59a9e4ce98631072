package gateway

import (
	"context"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	_ interfaces.ImageGenerator = (*EdgeImageGenerator)(nil)
	_ interfaces.VideoGenerator = (*EdgeVideoGenerator)(nil)
)

type edgeStoryMeta struct {
	StoryID  uuid.UUID `json:"storyId"`
	Title    string    `json:"title,omitempty"`
	ArtStyle string    `json:"artStyle,omitempty"`
}

func toEdgeMeta(m models.StoryMeta) edgeStoryMeta {
	return edgeStoryMeta{StoryID: m.StoryID, Title: m.Title, ArtStyle: m.ArtStyle}
}

type edgeImageRequest struct {
	Prompt         string        `json:"prompt"`
	StyleReference string        `json:"styleReference,omitempty"`
	ArtStyle       string        `json:"artStyle,omitempty"`
	Story          edgeStoryMeta `json:"story"`
}

type edgeImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// EdgeImageGenerator calls the hosted image function, which stores the image itself.
type EdgeImageGenerator struct {
	client   *edgeClient
	function string
	logger   *zap.Logger
}

func NewEdgeImageGenerator(baseURL, function, serviceKey string, timeout time.Duration, logger *zap.Logger) *EdgeImageGenerator {
	logger = logger.Named("EdgeImageGenerator")
	return &EdgeImageGenerator{
		client:   newEdgeClient(baseURL, serviceKey, timeout, logger),
		function: function,
		logger:   logger,
	}
}

func (g *EdgeImageGenerator) GenerateImage(ctx context.Context, req models.ImageRequest) (string, error) {
	started := time.Now()
	var resp edgeImageResponse
	err := g.client.call(ctx, g.function, edgeImageRequest{
		Prompt:         req.Prompt,
		StyleReference: req.StyleReference,
		ArtStyle:       req.ArtStyle,
		Story:          toEdgeMeta(req.Story),
	}, &resp)
	observeRequest(providerEdge, opImage, statusLabel(err), started)
	if IsQuotaExceeded(err) {
		g.logger.Info("Image generation refused by quota", zap.Stringer("storyID", req.Story.StoryID))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return resp.ImageURL, nil
}

type edgeVideoRequest struct {
	ImageURL string        `json:"imageUrl"`
	Prompt   string        `json:"prompt,omitempty"`
	Story    edgeStoryMeta `json:"story"`
}

type edgeVideoResponse struct {
	VideoURL string `json:"videoUrl"`
}

// EdgeVideoGenerator animates a chapter image through the hosted video function.
type EdgeVideoGenerator struct {
	client   *edgeClient
	function string
	logger   *zap.Logger
}

func NewEdgeVideoGenerator(baseURL, function, serviceKey string, timeout time.Duration, logger *zap.Logger) *EdgeVideoGenerator {
	logger = logger.Named("EdgeVideoGenerator")
	return &EdgeVideoGenerator{
		client:   newEdgeClient(baseURL, serviceKey, timeout, logger),
		function: function,
		logger:   logger,
	}
}

func (g *EdgeVideoGenerator) GenerateVideo(ctx context.Context, req models.VideoRequest) (string, error) {
	started := time.Now()
	var resp edgeVideoResponse
	err := g.client.call(ctx, g.function, edgeVideoRequest{
		ImageURL: req.ImageURL,
		Prompt:   req.Prompt,
		Story:    toEdgeMeta(req.Story),
	}, &resp)
	observeRequest(providerEdge, opVideo, statusLabel(err), started)
	if IsQuotaExceeded(err) {
		g.logger.Info("Video generation refused by quota", zap.Stringer("storyID", req.Story.StoryID))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return resp.VideoURL, nil
}
