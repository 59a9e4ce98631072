package gateway

import (
	"fmt"
	"strings"

	"nexttale/internal/config"
	"nexttale/shared/interfaces"

	"go.uber.org/zap"
)

// NewStoryGenerator builds the text generator selected by cfg.StoryProvider.
func NewStoryGenerator(cfg config.AIConfig, logger *zap.Logger) (interfaces.StoryGenerator, error) {
	switch strings.ToLower(cfg.StoryProvider) {
	case config.StoryProviderEdge:
		logger.Info("Using edge function story generator", zap.String("url", cfg.EdgeFunctionsURL), zap.String("function", cfg.StoryFunction))
		return NewEdgeStoryGenerator(cfg.EdgeFunctionsURL, cfg.StoryFunction, cfg.EdgeServiceKey, cfg.EdgeTimeout, logger), nil
	case config.StoryProviderOpenAI, config.StoryProviderOllama:
	default:
		return nil, fmt.Errorf("unknown story provider %q", cfg.StoryProvider)
	}

	prompts, err := LoadPromptSet(nil)
	if err != nil {
		return nil, err
	}

	var completer chatCompleter
	if strings.ToLower(cfg.StoryProvider) == config.StoryProviderOpenAI {
		completer = newOpenAICompleter(cfg.AIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.AITemperature, cfg.AITimeout)
	} else {
		completer, err = newOllamaCompleter(cfg.OllamaURL, cfg.OllamaModel, cfg.AITemperature, cfg.AITimeout)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("Using LLM story generator", zap.String("provider", completer.Provider()), zap.String("model", completer.Model()))
	return newLLMStoryGenerator(completer, prompts, cfg.AIMaxContextTokens, logger), nil
}

// NewImageGenerator builds the image generator selected by cfg.ImageProvider. It returns
// nil when images are disabled.
func NewImageGenerator(cfg config.AIConfig, store interfaces.AssetStore, logger *zap.Logger) (interfaces.ImageGenerator, error) {
	switch strings.ToLower(cfg.ImageProvider) {
	case config.ImageProviderEdge:
		return NewEdgeImageGenerator(cfg.EdgeFunctionsURL, cfg.ImageFunction, cfg.EdgeServiceKey, cfg.EdgeTimeout, logger), nil
	case config.ImageProviderSana:
		if store == nil {
			return nil, fmt.Errorf("image provider %q needs an asset store", cfg.ImageProvider)
		}
		return NewSanaImageGenerator(cfg.SanaBaseURL, cfg.ImageRatio, cfg.SanaTimeout, store, logger), nil
	case config.ImageProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.ImageProvider)
	}
}

// NewVideoGenerator returns nil when video is disabled.
func NewVideoGenerator(cfg config.AIConfig, logger *zap.Logger) interfaces.VideoGenerator {
	if !cfg.VideoEnabled {
		return nil
	}
	return NewEdgeVideoGenerator(cfg.EdgeFunctionsURL, cfg.VideoFunction, cfg.EdgeServiceKey, cfg.EdgeTimeout, logger)
}
