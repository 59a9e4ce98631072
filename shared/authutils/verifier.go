package authutils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nexttale/shared/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenVerifier checks an access token and returns its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

// clockSkew tolerated on exp/nbf/iat.
const clockSkew = 30 * time.Second

// readerRole is the role of signed-in readers; anonymous sessions carry "anon".
const readerRole = "authenticated"

var _ TokenVerifier = (*JWTVerifier)(nil)

// JWTVerifier verifies HMAC-signed tokens with the project's shared secret.
type JWTVerifier struct {
	secret []byte
	logger *zap.Logger
}

// NewJWTVerifier creates a verifier. A nil logger is replaced with a no-op one.
func NewJWTVerifier(jwtSecret string, logger *zap.Logger) (*JWTVerifier, error) {
	if jwtSecret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTVerifier{secret: []byte(jwtSecret), logger: logger.Named("JWTVerifier")}, nil
}

func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (*models.Claims, error) {
	return verify(v.logger, tokenString,
		func(*jwt.Token) (interface{}, error) { return v.secret, nil },
		"HS256", "HS384", "HS512")
}

// verify parses tokenString with keyFunc, accepting only the given algorithms,
// and checks the claims every reader token must carry.
func verify(logger *zap.Logger, tokenString string, keyFunc jwt.Keyfunc, algs ...string) (*models.Claims, error) {
	log := logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))
	claims := &models.Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods(algs),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		log.Warn("Failed to parse or verify token", zap.Error(err))
		return nil, mapJWTError(err)
	}
	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}
	if err := checkClaims(claims); err != nil {
		log.Warn("Token claims rejected", zap.Error(err))
		return nil, err
	}

	log.Debug("Token verified", zap.String("sub", claims.Subject))
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return models.ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return models.ErrTokenInvalid
	default:
		return fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
}

func checkClaims(claims *models.Claims) error {
	if claims.Role != "" && claims.Role != readerRole {
		return fmt.Errorf("%w: role %q", models.ErrTokenInvalid, claims.Role)
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: subject missing", models.ErrTokenInvalid)
	}
	if _, err := claims.UserID(); err != nil {
		return fmt.Errorf("%w: subject is not a user id", models.ErrTokenInvalid)
	}
	return nil
}

// tokenSnippet returns a log-safe prefix of the token.
func tokenSnippet(tokenString string) string {
	const limit = 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}
