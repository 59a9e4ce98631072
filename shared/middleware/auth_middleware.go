package middleware

import (
	"errors"
	"net/http"
	"strings"

	"nexttale/shared/authutils"
	"nexttale/shared/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenQueryParam carries the token for clients that cannot set headers (WebSocket upgrades).
const TokenQueryParam = "token"

// EchoAuthMiddleware verifies the bearer token and stores the user id and token in the
// request context. With allowQueryToken the token may also come from ?token=.
func EchoAuthMiddleware(verifier authutils.TokenVerifier, logger *zap.Logger, allowQueryToken bool) echo.MiddlewareFunc {
	logger = logger.Named("AuthMiddleware")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log := logger.With(zap.String("path", req.URL.Path))

			tokenString, err := extractToken(req, allowQueryToken)
			if err != nil {
				log.Warn("Missing or malformed token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized: " + err.Error()})
			}

			claims, err := verifier.VerifyToken(req.Context(), tokenString)
			if err != nil {
				status := http.StatusUnauthorized
				msg := "Unauthorized: Invalid token"
				switch {
				case errors.Is(err, models.ErrTokenExpired):
					msg = "Unauthorized: Token expired"
				case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
				default:
					log.Error("Unexpected token verification error", zap.Error(err))
					status = http.StatusInternalServerError
					msg = "Internal server error during token verification"
				}
				log.Warn("Token verification failed", zap.Error(err))
				return c.JSON(status, models.ErrorResponse{Error: msg})
			}

			userID, err := claims.UserID()
			if err != nil {
				log.Warn("Token subject is not a user id", zap.String("sub", claims.Subject))
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized: Invalid token"})
			}

			ctx := models.WithSession(req.Context(), userID, tokenString)
			c.SetRequest(req.WithContext(ctx))

			log.Debug("User authorized", zap.Stringer("userID", userID))
			return next(c)
		}
	}
}

var (
	errTokenMissing    = errors.New("missing token")
	errHeaderMalformed = errors.New("malformed token header")
)

func extractToken(req *http.Request, allowQueryToken bool) (string, error) {
	authHeader := req.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if allowQueryToken {
			if token := req.URL.Query().Get(TokenQueryParam); token != "" {
				return token, nil
			}
		}
		return "", errTokenMissing
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", errHeaderMalformed
	}
	return parts[1], nil
}
