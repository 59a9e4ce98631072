package middleware

import (
	"net/http"

	"nexttale/shared/models"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// EchoZapLogger writes one access log entry per request. Requests to skipPaths
// are only logged when they fail.
func EchoZapLogger(log *zap.Logger, skipPaths ...string) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			if _, quiet := skip[v.RoutePath]; quiet && v.Error == nil && v.Status < http.StatusBadRequest {
				return nil
			}

			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.String("route", v.RoutePath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("user_agent", v.UserAgent),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if storyID := c.Param("id"); storyID != "" {
				fields = append(fields, zap.String("story_id", storyID))
			}
			// set by the auth middleware inside the route group
			if userID, ok := models.GetUserIDFromContext(c.Request().Context()); ok {
				fields = append(fields, zap.Stringer("user_id", userID))
			}

			switch {
			case v.Error != nil && v.Status >= http.StatusInternalServerError:
				log.Error("Handler error", append(fields, zap.Error(v.Error))...)
			case v.Status >= http.StatusInternalServerError:
				log.Error("Server error", fields...)
			case v.Status >= http.StatusBadRequest:
				log.Warn("Client error", fields...)
			case v.Status == http.StatusSwitchingProtocols:
				log.Info("Connection upgraded", fields...)
			default:
				log.Info("Request served", fields...)
			}
			return nil
		},
	})
}
