package gateway

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"nexttale/shared/utils"
)

// approxRunesPerToken is used when no tokenizer is available.
const approxRunesPerToken = 4

// contextTrimmer keeps prompts inside the model's context window.
type contextTrimmer struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
}

func newContextTrimmer(model string, maxTokens int, logger *zap.Logger) *contextTrimmer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	}
	if err != nil {
		logger.Warn("No tokenizer available, counting by characters", zap.String("model", model), zap.Error(err))
		enc = nil
	}
	return &contextTrimmer{enc: enc, maxTokens: maxTokens}
}

// Count returns the token count of s, estimated when there is no tokenizer.
func (t *contextTrimmer) Count(s string) int {
	if t.enc == nil {
		return (len([]rune(s)) + approxRunesPerToken - 1) / approxRunesPerToken
	}
	return len(t.enc.Encode(s, nil, nil))
}

// KeepHead returns the first n tokens of s.
func (t *contextTrimmer) KeepHead(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if t.enc == nil {
		runes := []rune(s)
		if limit := n * approxRunesPerToken; len(runes) > limit {
			return string(runes[:limit])
		}
		return s
	}
	tokens := t.enc.Encode(s, nil, nil)
	if len(tokens) <= n {
		return s
	}
	return t.enc.Decode(tokens[:n])
}

// KeepTail returns the last n tokens of s; the end of a chapter matters most.
func (t *contextTrimmer) KeepTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if t.enc == nil {
		return utils.TailRunes(s, n*approxRunesPerToken)
	}
	tokens := t.enc.Encode(s, nil, nil)
	if len(tokens) <= n {
		return s
	}
	return t.enc.Decode(tokens[len(tokens)-n:])
}

// Fit trims story context and previous content so the whole prompt fits. The story
// context may use at most a third of what is left after the fixed prompt text.
func (t *contextTrimmer) Fit(fixed, storyContext, previous string) (string, string) {
	if t.maxTokens <= 0 {
		return storyContext, previous
	}
	available := t.maxTokens - t.Count(fixed)
	if available <= 0 {
		return "", ""
	}
	storyContext = t.KeepHead(storyContext, available/3)
	previous = t.KeepTail(previous, available-t.Count(storyContext))
	return storyContext, previous
}
