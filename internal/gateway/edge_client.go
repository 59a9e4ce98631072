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

	"nexttale/shared/models"
	"nexttale/shared/utils"

	"go.uber.org/zap"
)

const providerEdge = "edge"

// maxErrorBody bounds how much of an error response is kept for logs.
const maxErrorBody = 512

// edgeClient calls backend-as-a-service edge functions with JSON bodies.
type edgeClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

func newEdgeClient(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *edgeClient {
	return &edgeClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// bearer prefers the reader's own token and falls back to the service key.
func (c *edgeClient) bearer(ctx context.Context) (string, error) {
	if token, ok := models.GetAccessTokenFromContext(ctx); ok {
		return token, nil
	}
	if c.serviceKey != "" {
		return c.serviceKey, nil
	}
	return "", ErrNoCredentials
}

// call POSTs in to the named function and decodes the JSON response into out.
func (c *edgeClient) call(ctx context.Context, function string, in, out interface{}) error {
	log := c.logger.With(zap.String("function", function))

	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", function, err)
	}

	endpoint := c.baseURL + "/" + function
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	log.Debug("Calling edge function", zap.Int("bodyBytes", len(body)))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// keep the deadline visible to callers
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("call %s: %w", function, ctxErr)
		}
		return fmt.Errorf("call %s: %w", function, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Edge function returned error status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", utils.StringShort(string(respBody), maxErrorBody)),
		)
		return &StatusError{Provider: function, StatusCode: resp.StatusCode, Body: utils.StringShort(string(respBody), maxErrorBody)}
	}
	if readErr != nil {
		return fmt.Errorf("read %s response: %w", function, readErr)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		log.Warn("Edge function response is not valid JSON",
			zap.String("response_body", utils.StringShort(string(respBody), maxErrorBody)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %v", ErrProviderResponse, function, err)
	}
	return nil
}
