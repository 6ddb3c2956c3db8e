// Package api implements the REST surface of the listing service.
//
// Mutating and per-user routes expect an x-user-id header forwarded by the
// gateway.
//
// Routes:
//
//	GET    /health
//	GET    /api/listings                  → filtered, sorted, paginated active listings
//	POST   /api/listings                  → create
//	GET    /api/listings/:id              → one active listing
//	PATCH  /api/listings/:id              → update (owner)
//	DELETE /api/listings/:id              → delete (owner)
//	GET    /api/listings/:id/related      → up to 5 related listings
//	GET    /api/ilan/:slug                → resolve /ilan/{slug}-{id}
//	GET    /api/categories                → categories in use
//	GET    /api/my/listings               → caller's listings, any status
//	GET    /api/promotions/prices         → price table
//	POST   /api/promotions                → start a promotion payment
//	GET    /api/promotions/:id            → reconcile a payment
//	POST   /api/promotions/:id/cancel     → cancel a payment
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"isilanlarim/internal/catalog"
	"isilanlarim/internal/listing"
	"isilanlarim/internal/logger"
	"isilanlarim/internal/model"
	"isilanlarim/internal/promotion"
	"isilanlarim/internal/search"
	"isilanlarim/internal/session"
	"isilanlarim/internal/sitemap"
)

const (
	userHeader    = "x-user-id"
	sessionHeader = "X-Session-ID"
)

// ─── Response types ──────────────────────────────────────────────────────────

// ListingView is the JSON shape returned to the web client. Promotion flags
// are reported as effective at response time, so an expired window reads as
// not promoted even before the sweep clears it.
type ListingView struct {
	model.Listing
	Slug     string `json:"slug"`
	URL      string `json:"url"`
	DaysLeft int    `json:"daysLeft"`
}

// ListResponse is one page of listings plus the criteria that produced it.
type ListResponse struct {
	search.Page[ListingView]
	Criteria model.Criteria `json:"criteria"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Deps are the services behind the REST routes. Sessions, Promotions and
// Sitemaps may be nil; their routes are then not mounted or not persisted.
type Deps struct {
	Listings   *listing.Service
	Catalog    *catalog.Catalog
	Promotions *promotion.Service
	Sessions   *session.Store
	Sitemaps   *sitemap.Handler
	SiteURL    string
}

// Handler holds shared dependencies.
type Handler struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// NewHandler returns a configured Handler.
func NewHandler(deps Deps) *Handler {
	deps.SiteURL = strings.TrimRight(deps.SiteURL, "/")
	return &Handler{deps: deps, log: logger.For("api"), now: time.Now}
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.health)

	a := r.Group("/api")
	a.GET("/listings", h.list)
	a.POST("/listings", h.create)
	a.GET("/listings/:id", h.get)
	a.PATCH("/listings/:id", h.update)
	a.DELETE("/listings/:id", h.remove)
	a.GET("/listings/:id/related", h.related)
	a.GET("/ilan/:slug", h.bySlug)
	a.GET("/categories", h.categories)
	a.GET("/my/listings", h.mine)

	if h.deps.Promotions != nil {
		a.GET("/promotions/prices", h.prices)
		a.POST("/promotions", h.promote)
		a.GET("/promotions/:id", h.reconcile)
		a.POST("/promotions/:id/cancel", h.cancelPayment)
	}
	if h.deps.Sitemaps != nil {
		h.deps.Sitemaps.Register(r)
	}
}

// ─── Listing handlers ────────────────────────────────────────────────────────

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "listing-service"})
}

func (h *Handler) view(l model.Listing) ListingView {
	now := h.now()
	if !l.PromotionActive(now) {
		l.IsPremium, l.IsPromoted, l.PromotionExpiresAt = false, false, 0
	}
	segment := sitemap.Loc(h.deps.SiteURL, &l)
	return ListingView{
		Listing:  l,
		Slug:     segment[strings.LastIndexByte(segment, '/')+1:],
		URL:      segment,
		DaysLeft: l.DaysLeft(now),
	}
}

func (h *Handler) views(ls []model.Listing) []ListingView {
	out := make([]ListingView, len(ls))
	for i := range ls {
		out[i] = h.view(ls[i])
	}
	return out
}

// criteriaParams are the query keys used by the web client.
var criteriaParams = []string{"q", "kategori", "alt", "sehir", "deneyim", "sira"}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()
	sid := c.GetHeader(sessionHeader)

	st := session.State{Page: 1}
	if sid != "" && h.deps.Sessions != nil {
		loaded, err := h.deps.Sessions.Load(ctx, sid)
		if err != nil {
			h.log.Warn().Err(err).Msg("session load failed")
		} else {
			st = loaded
		}
	}

	changed := false
	for _, p := range criteriaParams {
		if _, ok := c.GetQuery(p); ok {
			changed = true
			break
		}
	}
	if changed {
		st.Criteria = model.Criteria{
			SearchTerm:      c.Query("q"),
			Category:        c.Query("kategori"),
			SubCategory:     c.Query("alt"),
			City:            c.Query("sehir"),
			ExperienceLevel: c.Query("deneyim"),
			SortBy:          search.ParseSortBy(c.Query("sira")),
		}
		st.Page = 1
	}
	goTo, navigate := 0, false
	if raw, ok := c.GetQuery("sayfa"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(c, http.StatusBadRequest, "sayfa must be a number")
			return
		}
		goTo, navigate = n, true
	}
	size := 0
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			jsonError(c, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		size = n
	}
	st.Criteria.SortBy = search.ParseSortBy(string(st.Criteria.SortBy))

	// Out-of-range sayfa values leave the current page as it was.
	q := catalog.Query{Criteria: st.Criteria, Page: st.Page, Size: size}
	var page search.Page[model.Listing]
	if navigate {
		page = h.deps.Catalog.Navigate(q, goTo)
	} else {
		page = h.deps.Catalog.Search(q)
	}
	st.Page = page.CurrentPage

	if sid != "" && h.deps.Sessions != nil {
		if err := h.deps.Sessions.Save(ctx, sid, st); err != nil {
			h.log.Warn().Err(err).Msg("session save failed")
		}
	}

	c.JSON(http.StatusOK, ListResponse{
		Page: search.Page[ListingView]{
			Items:       h.views(page.Items),
			CurrentPage: page.CurrentPage,
			TotalPages:  page.TotalPages,
			TotalItems:  page.TotalItems,
			PageSize:    page.PageSize,
			StartIndex:  page.StartIndex,
			EndIndex:    page.EndIndex,
			HasNextPage: page.HasNextPage,
			HasPrevPage: page.HasPrevPage,
			PageNumbers: page.PageNumbers,
		},
		Criteria: st.Criteria,
	})
}

func (h *Handler) get(c *gin.Context) {
	l, err := h.deps.Listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(*l))
}

func (h *Handler) related(c *gin.Context) {
	l, err := h.deps.Listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.views(h.deps.Catalog.Related(*l)))
}

func (h *Handler) bySlug(c *gin.Context) {
	l, err := h.deps.Listings.ResolveSlug(c.Request.Context(), c.Param("slug"), h.deps.Catalog.Active())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(*l))
}

func (h *Handler) categories(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Catalog.Categories())
}

func (h *Handler) mine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ls, err := h.deps.Listings.Mine(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.views(ls))
}

func (h *Handler) create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var d listing.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	l, err := h.deps.Listings.Create(c.Request.Context(), userID, d)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(*l))
}

func (h *Handler) update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var p listing.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	l, err := h.deps.Listings.Update(c.Request.Context(), userID, c.Param("id"), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(*l))
}

func (h *Handler) remove(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.deps.Listings.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ─── Promotion handlers ──────────────────────────────────────────────────────

func (h *Handler) prices(c *gin.Context) {
	c.JSON(http.StatusOK, promotion.Prices())
}

func (h *Handler) promote(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req promotion.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	o, err := h.deps.Promotions.Initiate(c.Request.Context(), userID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) reconcile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	o, err := h.deps.Promotions.Reconcile(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) cancelPayment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	o, err := h.deps.Promotions.Cancel(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		jsonError(c, http.StatusUnauthorized, "missing x-user-id header")
		return "", false
	}
	return userID, true
}

// fail maps domain errors to HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *listing.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(c, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, listing.ErrDuplicateTitle):
		jsonError(c, http.StatusConflict, err.Error())
	case errors.Is(err, listing.ErrNotFound), errors.Is(err, promotion.ErrOrderNotFound):
		jsonError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, listing.ErrForbidden):
		jsonError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, promotion.ErrGateway):
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("payment gateway error")
		jsonError(c, http.StatusBadGateway, "payment gateway unavailable, please retry")
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		jsonError(c, http.StatusInternalServerError, "internal server error")
	}
}

func jsonError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
