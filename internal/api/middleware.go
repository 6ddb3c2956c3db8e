package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"isilanlarim/internal/metrics"
)

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		ev := log.Info()
		if len(c.Errors) > 0 || c.Writer.Status() >= 500 {
			ev = log.Error()
		}
		ev = ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP())
		if query != "" {
			ev = ev.Str("query", query)
		}
		if !strings.HasPrefix(path, "/health") {
			ev = ev.Str("user_agent", c.Request.UserAgent())
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}

// NewRouter builds the gin engine with recovery, logging, metrics and every
// route of h. m may be nil.
func NewRouter(h *Handler, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.log), m.GinMiddleware())
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	h.RegisterRoutes(r)
	return r
}
