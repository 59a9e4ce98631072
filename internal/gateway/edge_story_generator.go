package gateway

import (
	"context"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"go.uber.org/zap"
)

var _ interfaces.StoryGenerator = (*EdgeStoryGenerator)(nil)

type edgeStoryRequest struct {
	StoryContext    string `json:"storyContext"`
	UserChoice      string `json:"userChoice,omitempty"`
	PreviousContent string `json:"previousContent,omitempty"`
}

// EdgeStoryGenerator calls the hosted story generation function.
type EdgeStoryGenerator struct {
	client   *edgeClient
	function string
	logger   *zap.Logger
}

// NewEdgeStoryGenerator creates a generator for baseURL/function. The reader's bearer token
// from ctx is forwarded; serviceKey is used when there is none (background workers).
func NewEdgeStoryGenerator(baseURL, function, serviceKey string, timeout time.Duration, logger *zap.Logger) *EdgeStoryGenerator {
	logger = logger.Named("EdgeStoryGenerator")
	return &EdgeStoryGenerator{
		client:   newEdgeClient(baseURL, serviceKey, timeout, logger),
		function: function,
		logger:   logger,
	}
}

func (g *EdgeStoryGenerator) GenerateStory(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	started := time.Now()
	var result models.GenerationResult
	err := g.client.call(ctx, g.function, edgeStoryRequest{
		StoryContext:    req.StoryContext,
		UserChoice:      req.UserChoice,
		PreviousContent: req.PreviousContent,
	}, &result)
	observeRequest(providerEdge, opStory, statusLabel(err), started)
	if err != nil {
		g.logger.Warn("Story generation failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, err
	}

	g.logger.Debug("Story generated",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("contentLen", len(result.Content)),
		zap.Int("choices", len(result.Choices)),
		zap.Bool("ending", result.IsEnding),
	)
	return &result, nil
}
