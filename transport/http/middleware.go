package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/internal/metrics"
	"github.com/layer-3/basetips/ports"
	"github.com/rs/zerolog"
)

const (
	sessionKey   = "session"
	addressKey   = "userAddress"
	requestIDKey = "requestID"

	requestIDHeader = "X-Request-ID"
)

// SessionMiddleware loads the session cookie into the request context. An
// absent or unreadable cookie yields an empty session.
func SessionMiddleware(sessions ports.SessionStore, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessions.Load(c.Request)
		if err != nil && !errors.Is(err, core.ErrNoSession) {
			logger.Warn().Err(err).Msg("failed to load session")
		}
		if session == nil {
			session = &core.Session{}
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// AuthMiddleware rejects requests whose session has no verified identity
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessionFrom(c)
		if !session.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
			return
		}

		// Set the user address in the context
		c.Set(addressKey, session.Address)

		c.Next()
	}
}

// LoggerMiddleware tags each request with an id and logs it when done
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// MetricsMiddleware records request counts and latency per route
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Request(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

func sessionFrom(c *gin.Context) *core.Session {
	if v, ok := c.Get(sessionKey); ok {
		if session, ok := v.(*core.Session); ok && session != nil {
			return session
		}
	}
	return &core.Session{}
}
