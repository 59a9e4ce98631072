package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"
	"nexttale/shared/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const providerSana = "sana"

var _ interfaces.ImageGenerator = (*SanaImageGenerator)(nil)

type sanaRequest struct {
	Prompt string `json:"prompt"`
	Ratio  string `json:"ratio"`
}

// SanaImageGenerator renders images on a self-hosted SANA server and uploads them to
// the asset store.
type SanaImageGenerator struct {
	baseURL    string
	ratio      string
	httpClient *http.Client
	store      interfaces.AssetStore
	logger     *zap.Logger
}

func NewSanaImageGenerator(baseURL, ratio string, timeout time.Duration, store interfaces.AssetStore, logger *zap.Logger) *SanaImageGenerator {
	if ratio == "" {
		ratio = "16:9"
	}
	return &SanaImageGenerator{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		ratio:      ratio,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		logger:     logger.Named("SanaImageGenerator"),
	}
}

// BuildSanaPrompt joins the scene prompt with the style hints the renderer understands.
func BuildSanaPrompt(req models.ImageRequest) string {
	parts := []string{strings.TrimSpace(req.Prompt)}
	if req.ArtStyle != "" {
		parts = append(parts, "art style: "+req.ArtStyle)
	}
	if req.StyleReference != "" {
		parts = append(parts, "keep the visual style of: "+utils.StringShort(req.StyleReference, 300))
	}
	return strings.Join(parts, ". ")
}

func (g *SanaImageGenerator) GenerateImage(ctx context.Context, req models.ImageRequest) (string, error) {
	log := g.logger.With(zap.Stringer("storyID", req.Story.StoryID))
	started := time.Now()

	imageData, contentType, err := g.render(ctx, BuildSanaPrompt(req))
	observeRequest(providerSana, opImage, statusLabel(err), started)
	if IsQuotaExceeded(err) {
		log.Info("SANA server refused the request, skipping image")
		return "", nil
	}
	if err != nil {
		log.Error("SANA render failed", zap.Error(err))
		return "", err
	}
	log.Debug("Image rendered", zap.Int("size_bytes", len(imageData)), zap.Duration("elapsed", time.Since(started)))

	objectName := fmt.Sprintf("stories/%s/%s%s", req.Story.StoryID, uuid.NewString(), extensionFor(contentType))
	url, err := g.store.Put(ctx, objectName, imageData, contentType)
	if err != nil {
		log.Error("Failed to store rendered image", zap.String("object", objectName), zap.Error(err))
		return "", err
	}
	return url, nil
}

func (g *SanaImageGenerator) render(ctx context.Context, prompt string) ([]byte, string, error) {
	body, err := json.Marshal(sanaRequest{Prompt: prompt, Ratio: g.ratio})
	if err != nil {
		return nil, "", fmt.Errorf("marshal SANA request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create SANA request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", fmt.Errorf("SANA request: %w", ctxErr)
		}
		return nil, "", fmt.Errorf("SANA request: %w", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, "", &StatusError{Provider: providerSana, StatusCode: resp.StatusCode, Body: utils.StringShort(string(data), maxErrorBody)}
	}
	if readErr != nil {
		return nil, "", fmt.Errorf("read SANA response: %w", readErr)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: SANA returned empty image data", ErrProviderResponse)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
