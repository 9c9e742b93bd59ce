package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID keeps an incoming X-Request-ID only when it parses as a UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		if incoming, err := uuid.Parse(c.GetHeader(RequestIDHeader)); err == nil {
			requestID = incoming.String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger never logs bodies or the Authorization header.
func RequestLogger(lgr *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("request_id", GetRequestID(c)),
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
		}
		if principal, ok := PrincipalFrom(c); ok {
			attrs = append(attrs, slog.Int64("user_id", principal.ID))
		}

		switch {
		case status >= 500:
			lgr.Error("server error", attrs...)
		case status >= 400:
			lgr.Warn("client error", attrs...)
		default:
			lgr.Info("request completed", attrs...)
		}
	}
}
