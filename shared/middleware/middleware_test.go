package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nexttale/shared/authutils"
	"nexttale/shared/middleware"
	"nexttale/shared/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type whoami struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func newAuthServer(t *testing.T, allowQueryToken bool) *echo.Echo {
	t.Helper()
	verifier, err := authutils.NewJWTVerifier(testSecret, zap.NewNop())
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		userID, _ := models.GetUserIDFromContext(c.Request().Context())
		token, _ := models.GetAccessTokenFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, whoami{UserID: userID.String(), Token: token})
	}, middleware.EchoAuthMiddleware(verifier, zap.NewNop(), allowQueryToken))
	return e
}

func TestEchoAuthMiddleware(t *testing.T) {
	userID := uuid.New()

	t.Run("Bearer header", func(t *testing.T) {
		e := newAuthServer(t, false)
		token := signToken(t, userID.String(), time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got whoami
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, userID.String(), got.UserID)
		assert.Equal(t, token, got.Token)
	})

	t.Run("Query token only when allowed", func(t *testing.T) {
		token := signToken(t, userID.String(), time.Hour)

		rec := httptest.NewRecorder()
		newAuthServer(t, true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		newAuthServer(t, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Rejections", func(t *testing.T) {
		testCases := []struct {
			name    string
			header  string
			message string
		}{
			{"missing", "", "Unauthorized: missing token"},
			{"not bearer", "Basic abc", "Unauthorized: malformed token header"},
			{"expired", "Bearer " + signToken(t, userID.String(), -time.Minute), "Unauthorized: Token expired"},
			{"garbage", "Bearer not.a.jwt", "Unauthorized: Invalid token"},
			{"subject is not a uuid", "Bearer " + signToken(t, "reader-7", time.Hour), "Unauthorized: Invalid token"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/me", nil)
				if tc.header != "" {
					req.Header.Set(echo.HeaderAuthorization, tc.header)
				}
				rec := httptest.NewRecorder()

				newAuthServer(t, false).ServeHTTP(rec, req)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				var body models.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.message, body.Error)
			})
		}
	})
}

func TestEchoZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(middleware.EchoZapLogger(zap.New(core), "/health"))

	healthy := true
	e.GET("/health", func(c echo.Context) error {
		if healthy {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})
	e.GET("/stories/:id/session", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.POST("/stories/:id/session/choose", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
	})

	storyID := uuid.NewString()
	serve := func(method, path string) {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
	}

	serve(http.MethodGet, "/health")
	assert.Zero(t, logs.Len(), "healthy health checks are not logged")

	serve(http.MethodGet, "/stories/"+storyID+"/session")
	served := logs.FilterMessage("Request served").All()
	require.Len(t, served, 1)
	fields := served[0].ContextMap()
	assert.Equal(t, "/stories/:id/session", fields["route"])
	assert.Equal(t, storyID, fields["story_id"])
	assert.EqualValues(t, http.StatusOK, fields["status"])

	serve(http.MethodPost, "/stories/"+storyID+"/session/choose")
	failed := logs.FilterMessage("Handler error").All()
	require.Len(t, failed, 1)
	assert.EqualValues(t, http.StatusBadGateway, failed[0].ContextMap()["status"])

	healthy = false
	serve(http.MethodGet, "/health")
	assert.Len(t, logs.FilterMessage("Server error").All(), 1, "failing health checks are logged")
}
