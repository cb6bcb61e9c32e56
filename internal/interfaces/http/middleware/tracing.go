package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// RunID tags every span with the run being served
	RunID func() string
}

// Tracing returns otelgin followed by a middleware that enriches the
// request span. Disabled tracing yields an empty chain.
func Tracing(cfg TracingConfig) gin.HandlersChain {
	if !cfg.Enabled {
		return nil
	}
	return gin.HandlersChain{
		otelgin.Middleware(cfg.ServiceName),
		spanAttributes(cfg),
	}
}

// spanAttributes runs inside the otelgin span, so attributes set here land
// on the request span.
func spanAttributes(cfg TracingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := GetRequestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if cfg.RunID != nil {
			if runID := cfg.RunID(); runID != "" {
				span.SetAttributes(attribute.String("run_id", runID))
			}
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
