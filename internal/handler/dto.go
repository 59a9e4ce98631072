package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type loadNodeRequest struct {
	NodeKey string `json:"nodeKey" validate:"required,max=64"`
}

// ChapterIndex is a pointer so that 0 passes "required".
type chooseRequest struct {
	ChapterIndex *int   `json:"chapterIndex" validate:"required,min=0"`
	ChoiceID     string `json:"choiceId" validate:"required,uuid"`
}

type customChoiceRequest struct {
	ChapterIndex *int   `json:"chapterIndex" validate:"required,min=0"`
	Text         string `json:"text" validate:"required,max=500"`
}

// RequestValidator adapts validator/v10 to echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator returns a validator for request DTOs.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

var _ echo.Validator = (*RequestValidator)(nil)

// bindAndValidate decodes the body into req and validates it. A non-empty
// result is the message for a 400 response.
func bindAndValidate(c echo.Context, req interface{}) string {
	if err := c.Bind(req); err != nil {
		return "Invalid request body"
	}
	if err := c.Validate(req); err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			if msg, ok := he.Message.(string); ok {
				return msg
			}
		}
		return "Invalid request"
	}
	return ""
}
