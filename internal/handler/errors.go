package handler

import (
	"errors"
	"net/http"

	"nexttale/internal/service"
	"nexttale/shared/models"

	"github.com/labstack/echo/v4"
)

// statusFor maps service errors to an HTTP status and whether a retry may help.
func statusFor(err error) (int, string, bool) {
	switch {
	case errors.Is(err, models.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, "Story generation timed out, try again", true
	case errors.Is(err, models.ErrNoChoicesProvided),
		errors.Is(err, models.ErrInvalidGeneration),
		errors.Is(err, models.ErrGenerationFailed):
		return http.StatusBadGateway, "Story generation failed", false
	case errors.Is(err, models.ErrNotAuthenticated),
		errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrTokenInvalid),
		errors.Is(err, models.ErrTokenMalformed),
		errors.Is(err, models.ErrTokenExpired):
		return http.StatusUnauthorized, "Unauthorized", false
	case errors.Is(err, models.ErrNotFound), errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "Resource not found", false
	case errors.Is(err, service.ErrTransitionAborted), errors.Is(err, service.ErrPlaceholderState):
		return http.StatusConflict, err.Error(), true
	case errors.Is(err, service.ErrPathNotReproducible):
		return http.StatusConflict, err.Error(), false
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrBadRequest),
		errors.Is(err, service.ErrInvalidChapter),
		errors.Is(err, service.ErrChoiceNotFound):
		return http.StatusBadRequest, err.Error(), false
	default:
		return http.StatusInternalServerError, "Internal server error", false
	}
}

func (h *SessionHandler) handleServiceError(c echo.Context, err error) error {
	status, msg, retryable := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", requestFields(c, err)...)
	} else {
		h.logger.Warn("Request rejected", requestFields(c, err)...)
	}
	return c.JSON(status, models.ErrorResponse{Error: msg, Retryable: retryable})
}
