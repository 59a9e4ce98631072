package gateway

import (
	_ "embed"
	"fmt"
	"strings"

	"nexttale/shared/models"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/story.yaml
var defaultPromptsYAML []byte

// PromptSet holds the prompt templates for text providers.
type PromptSet struct {
	System       string `yaml:"system"`
	Opening      string `yaml:"opening"`
	Continuation string `yaml:"continuation"`
	ChoicesOnly  string `yaml:"choices_only"`
}

// LoadPromptSet parses a YAML prompt set. Empty data loads the built-in prompts.
func LoadPromptSet(data []byte) (*PromptSet, error) {
	if len(data) == 0 {
		data = defaultPromptsYAML
	}
	var ps PromptSet
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("parse prompt set: %w", err)
	}
	if strings.TrimSpace(ps.System) == "" || strings.TrimSpace(ps.Opening) == "" || strings.TrimSpace(ps.Continuation) == "" {
		return nil, fmt.Errorf("prompt set must define system, opening and continuation")
	}
	if strings.TrimSpace(ps.ChoicesOnly) == "" {
		ps.ChoicesOnly = ps.Continuation
	}
	return &ps, nil
}

// UserPrompt picks and fills the template for req.
func (ps *PromptSet) UserPrompt(req models.GenerationRequest) string {
	tmpl := ps.Continuation
	switch {
	case req.PreviousContent == "" && req.UserChoice == "":
		tmpl = ps.Opening
	case req.UserChoice == "":
		tmpl = ps.ChoicesOnly
	}
	return strings.NewReplacer(
		"{{story_context}}", req.StoryContext,
		"{{previous_content}}", req.PreviousContent,
		"{{user_choice}}", req.UserChoice,
	).Replace(tmpl)
}
