package authutils

import (
	"context"
	"errors"
	"fmt"

	"nexttale/shared/models"

	"github.com/MicahParks/keyfunc/v3"
	"go.uber.org/zap"
)

var _ TokenVerifier = (*JWKSVerifier)(nil)

// JWKSVerifier verifies asymmetric tokens issued by the backend-as-a-service,
// fetching and refreshing public keys from its JWKS endpoint.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	logger *zap.Logger
}

// NewJWKSVerifier starts a JWKS client bound to ctx. Key refresh stops when ctx is done.
func NewJWKSVerifier(ctx context.Context, jwksURL string, logger *zap.Logger) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger = logger.Named("JWKSVerifier")
	logger.Info("JWKS verifier initialized", zap.String("jwksURL", jwksURL))
	return &JWKSVerifier{jwks: jwks, logger: logger}, nil
}

func (v *JWKSVerifier) VerifyToken(_ context.Context, tokenString string) (*models.Claims, error) {
	return verify(v.logger, tokenString, v.jwks.Keyfunc, "RS256", "ES256")
}
