package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"nexttale/internal/service"
	"nexttale/shared/models"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err       error
		status    int
		retryable bool
	}{
		{fmt.Errorf("%w after 25s", models.ErrGenerationTimeout), http.StatusGatewayTimeout, true},
		{models.ErrNoChoicesProvided, http.StatusBadGateway, false},
		{fmt.Errorf("%w: %w", models.ErrGenerationFailed, errors.New("upstream 500")), http.StatusBadGateway, false},
		{fmt.Errorf("%w: blank content", models.ErrInvalidGeneration), http.StatusBadGateway, false},
		{models.ErrNotAuthenticated, http.StatusUnauthorized, false},
		{models.ErrTokenExpired, http.StatusUnauthorized, false},
		{models.ErrNotFound, http.StatusNotFound, false},
		{service.ErrSessionNotFound, http.StatusNotFound, false},
		{service.ErrTransitionAborted, http.StatusConflict, true},
		{fmt.Errorf("%w: no choice leads to %q", service.ErrPathNotReproducible, "node_x"), http.StatusConflict, false},
		{fmt.Errorf("%w: node %q is not on the reader's path", models.ErrInvalidInput, "node_x"), http.StatusBadRequest, false},
		{fmt.Errorf("%w: choice text is empty", models.ErrInvalidInput), http.StatusBadRequest, false},
		{service.ErrInvalidChapter, http.StatusBadRequest, false},
		{service.ErrChoiceNotFound, http.StatusBadRequest, false},
		{context.Canceled, http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, msg, retryable := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.retryable, retryable)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	cfg := newWSConfig([]string{"https://reader.example"})
	req, _ := http.NewRequest(http.MethodGet, "http://api.example/stories/x/events", nil)

	req.Header.Set("Origin", "https://reader.example")
	assert.True(t, cfg.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, cfg.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "http://api.example")
	assert.True(t, cfg.upgrader.CheckOrigin(req))

	assert.True(t, newWSConfig([]string{"*"}).upgrader.CheckOrigin(req))
}
