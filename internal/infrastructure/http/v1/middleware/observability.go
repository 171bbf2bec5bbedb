package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	appctx "stokado/internal/core/context"
	"stokado/internal/core/id"
	"stokado/pkg/logger"
)

var tracer = otel.Tracer("stokado/http")

const requestIDHeader = "X-Request-ID"

// Trace opens a span per request and seeds the request/trace ids into ctx so
// the logger can correlate lines.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = id.New().String()
		}

		ctx, span := tracer.Start(c.Request.Context(), c.FullPath())
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.request_id", requestID),
		)

		ctx = appctx.WithTrace(ctx, &appctx.TraceContext{
			TraceID:   span.SpanContext().TraceID().String(),
			RequestID: requestID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// RequestLogger logs one line per request with latency and status.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		logger.Info(ctx, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Recovery turns panics into 500s without killing the worker.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", r, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(500, errorResponse{
					Code:    "INTERNAL_ERROR",
					Message: "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
