package sitemap

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"isilanlarim/internal/logger"
)

const contentType = "application/xml; charset=utf-8"

// Handler serves the sitemap documents.
type Handler struct {
	builder *Builder
	cache   *Cache
	log     zerolog.Logger
	now     func() time.Time
}

// NewHandler returns a Handler. cache may be nil.
func NewHandler(builder *Builder, cache *Cache) *Handler {
	return &Handler{builder: builder, cache: cache, log: logger.For("sitemap"), now: time.Now}
}

// Register mounts the sitemap routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(IndexPath, h.Index)
	r.GET(JobsPath, h.Jobs)
}

// Index serves the sitemap index.
func (h *Handler) Index(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, BuildIndex(h.builder.SiteURL(), ChildSitemaps, h.now()))
}

// Jobs serves the jobs sitemap, from cache when possible. A degraded
// document is still valid XML but goes out as 503 so crawlers retry.
func (h *Handler) Jobs(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		doc Document
		hit bool
	)
	if h.cache != nil {
		var err error
		doc, hit, err = h.cache.Get(ctx)
		if err != nil {
			h.log.Warn().Err(err).Msg("sitemap cache read failed")
		}
	}
	if !hit {
		doc = h.builder.Build(ctx)
		if h.cache != nil {
			if err := h.cache.Put(ctx, doc); err != nil {
				h.log.Warn().Err(err).Msg("sitemap cache write failed")
			}
		}
	}

	if doc.Degraded() {
		h.log.Error().Str("err", doc.Err).Msg("serving degraded sitemap")
		c.Data(http.StatusServiceUnavailable, contentType, doc.XML)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("X-Robots-Tag", "index, follow")
	c.Header("X-Active-Jobs", strconv.Itoa(doc.Active))
	c.Header("X-Total-Jobs", strconv.Itoa(doc.Total))
	c.Header("X-Generated-At", doc.GeneratedAt.UTC().Format(time.RFC3339))
	c.Data(http.StatusOK, contentType, doc.XML)
}
