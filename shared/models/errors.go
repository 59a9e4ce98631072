package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	// Authentication Errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Generation Errors
	ErrGenerationTimeout  = errors.New("generation timed out")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrNoChoicesProvided  = errors.New("no choices provided")
	ErrInvalidGeneration  = errors.New("generation result is invalid")
	ErrAssetQuotaExceeded = errors.New("asset generation quota exceeded")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
