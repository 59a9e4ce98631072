package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"
	"nexttale/shared/utils"

	"go.uber.org/zap"
)

var _ interfaces.StoryGenerator = (*LLMStoryGenerator)(nil)

type tokenUsage struct {
	Prompt     int
	Completion int
}

// chatCompleter is one chat-completion backend.
type chatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, tokenUsage, error)
	Provider() string
	Model() string
}

// LLMStoryGenerator prompts a chat model directly and parses its JSON answer.
type LLMStoryGenerator struct {
	completer chatCompleter
	prompts   *PromptSet
	trimmer   *contextTrimmer
	logger    *zap.Logger
}

func newLLMStoryGenerator(completer chatCompleter, prompts *PromptSet, maxContextTokens int, logger *zap.Logger) *LLMStoryGenerator {
	logger = logger.Named("LLMStoryGenerator").With(zap.String("provider", completer.Provider()), zap.String("model", completer.Model()))
	return &LLMStoryGenerator{
		completer: completer,
		prompts:   prompts,
		trimmer:   newContextTrimmer(completer.Model(), maxContextTokens, logger),
		logger:    logger,
	}
}

func (g *LLMStoryGenerator) GenerateStory(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	fixed := g.prompts.System + req.UserChoice + g.prompts.Continuation
	req.StoryContext, req.PreviousContent = g.trimmer.Fit(fixed, req.StoryContext, req.PreviousContent)
	userPrompt := g.prompts.UserPrompt(req)

	started := time.Now()
	text, usage, err := g.completer.Complete(ctx, g.prompts.System, userPrompt)
	if err == nil {
		observeTokens(g.completer.Provider(), usage.Prompt, usage.Completion)
	}

	var result *models.GenerationResult
	if err == nil {
		result, err = parseGenerationResult(text)
	}
	observeRequest(g.completer.Provider(), opStory, statusLabel(err), started)
	if err != nil {
		g.logger.Warn("Story generation failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, err
	}

	g.logger.Debug("Story generated",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("promptTokens", usage.Prompt),
		zap.Int("completionTokens", usage.Completion),
		zap.Int("choices", len(result.Choices)),
	)
	return result, nil
}

// parseGenerationResult decodes model output into a result. Shape rules are checked by
// the caller.
func parseGenerationResult(text string) (*models.GenerationResult, error) {
	raw := utils.ExtractJSONObject(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in model output (%s)", ErrProviderResponse, utils.StringShort(text, 80))
	}
	var result models.GenerationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderResponse, err)
	}
	result.Content = strings.TrimSpace(result.Content)
	result.EndingType = strings.TrimSpace(result.EndingType)
	return &result, nil
}
