package models

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is private to avoid collisions.
type contextKey string

const (
	// UserContextKey holds the authenticated user's uuid.UUID.
	UserContextKey contextKey = "userID"
	// AccessTokenContextKey holds the raw bearer token forwarded to edge functions.
	AccessTokenContextKey contextKey = "accessToken"
)

// WithSession stores the authenticated user and their bearer token in ctx.
func WithSession(ctx context.Context, userID uuid.UUID, accessToken string) context.Context {
	ctx = context.WithValue(ctx, UserContextKey, userID)
	return context.WithValue(ctx, AccessTokenContextKey, accessToken)
}

// GetUserIDFromContext returns the authenticated user id.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// GetAccessTokenFromContext returns the bearer token, if any.
func GetAccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(AccessTokenContextKey).(string)
	return token, ok && token != ""
}
