package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isilanlarim/internal/api"
	"isilanlarim/internal/catalog"
	"isilanlarim/internal/listing"
	"isilanlarim/internal/listing/listingtest"
	"isilanlarim/internal/model"
	"isilanlarim/internal/promotion"
	"isilanlarim/internal/promotion/promotiontest"
	"isilanlarim/internal/session"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	router http.Handler
	store  *listingtest.Store
	feed   *listing.Feed
}

func seed(now time.Time) []model.Listing {
	ls := make([]model.Listing, 0, 25)
	for i := range 25 {
		cat, city := "hizmet", "Ankara"
		if i%5 == 0 {
			cat, city = "teknoloji", "İstanbul"
		}
		ls = append(ls, model.Listing{
			ID:          fmt.Sprintf("abcdef%04d", i),
			UserID:      "owner",
			Title:       fmt.Sprintf("Garson %d", i),
			Company:     "Lezzet",
			Description: "Akşam vardiyası",
			Location:    city,
			Type:        "Tam Zamanlı",
			Category:    cat,
			SubCategory: "genel",
			CreatedAt:   now.Add(-time.Duration(i) * time.Hour).UnixMilli(),
			Status:      model.StatusActive,
		})
	}
	return ls
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := listingtest.New(seed(time.Now())...)
	feed := listing.NewFeed(store, nil, time.Hour, nil)
	require.NoError(t, feed.Load(context.Background(), "test"))

	h := api.NewHandler(api.Deps{
		Listings: listing.NewService(store, nil, nil, nil),
		Catalog:  catalog.New(feed),
		Sessions: session.NewStore(rdb, time.Hour),
		SiteURL:  "https://isilanlarim.example/",
	})
	return fixture{router: api.NewRouter(h, nil), store: store, feed: feed}
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type listBody struct {
	Items []struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
		URL  string `json:"url"`
	} `json:"items"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalItems  int            `json:"totalItems"`
	Criteria    model.Criteria `json:"criteria"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := do(t, f.router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestList_DefaultPage(t *testing.T) {
	f := newFixture(t)
	w := do(t, f.router, http.MethodGet, "/api/listings", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[listBody](t, w)
	assert.Equal(t, 25, body.TotalItems)
	assert.Equal(t, 2, body.TotalPages)
	require.Len(t, body.Items, 20)
	assert.Equal(t, "abcdef0000", body.Items[0].ID)
	assert.Equal(t, "garson-0-abcdef0000", body.Items[0].Slug)
	assert.Equal(t, "https://isilanlarim.example/ilan/garson-0-abcdef0000", body.Items[0].URL)
}

func TestList_FiltersAndBadParams(t *testing.T) {
	f := newFixture(t)

	w := do(t, f.router, http.MethodGet, "/api/listings?kategori=teknoloji&sira=oldest", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[listBody](t, w)
	assert.Equal(t, 5, body.TotalItems)
	assert.Equal(t, "abcdef0020", body.Items[0].ID)
	assert.Equal(t, model.SortOldest, body.Criteria.SortBy)

	w = do(t, f.router, http.MethodGet, "/api/listings?sayfa=iki", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, f.router, http.MethodGet, "/api/listings?limit=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestList_SessionRemembersCriteriaAndPage(t *testing.T) {
	f := newFixture(t)
	sid := map[string]string{"X-Session-ID": "s1"}

	w := do(t, f.router, http.MethodGet, "/api/listings?sehir=ankara", nil, sid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, decode[listBody](t, w).TotalItems)

	// A new filter replaces the old one.
	w = do(t, f.router, http.MethodGet, "/api/listings?q=garson", nil, sid)
	body := decode[listBody](t, w)
	assert.Empty(t, body.Criteria.City)
	assert.Equal(t, 25, body.TotalItems)

	w = do(t, f.router, http.MethodGet, "/api/listings?sayfa=2", nil, sid)
	body = decode[listBody](t, w)
	assert.Equal(t, "garson", body.Criteria.SearchTerm)
	assert.Equal(t, 2, body.CurrentPage)
	require.Len(t, body.Items, 5)

	// The page is remembered too.
	w = do(t, f.router, http.MethodGet, "/api/listings", nil, sid)
	assert.Equal(t, 2, decode[listBody](t, w).CurrentPage)

	// Changing the filter resets the page.
	w = do(t, f.router, http.MethodGet, "/api/listings?kategori=hizmet", nil, sid)
	assert.Equal(t, 1, decode[listBody](t, w).CurrentPage)

	// Without the header nothing is remembered.
	w = do(t, f.router, http.MethodGet, "/api/listings", nil, nil)
	assert.Equal(t, 25, decode[listBody](t, w).TotalItems)
}

func TestList_OutOfRangePageKeepsCurrent(t *testing.T) {
	f := newFixture(t)
	sid := map[string]string{"X-Session-ID": "s2"}

	w := do(t, f.router, http.MethodGet, "/api/listings", nil, sid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[listBody](t, w).CurrentPage)

	for _, bad := range []string{"99", "0", "-3"} {
		w = do(t, f.router, http.MethodGet, "/api/listings?sayfa="+bad, nil, sid)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, decode[listBody](t, w).CurrentPage, "sayfa=%s", bad)
	}
	w = do(t, f.router, http.MethodGet, "/api/listings", nil, sid)
	assert.Equal(t, 1, decode[listBody](t, w).CurrentPage, "stored page unchanged")

	w = do(t, f.router, http.MethodGet, "/api/listings?sayfa=2", nil, sid)
	assert.Equal(t, 2, decode[listBody](t, w).CurrentPage)
	w = do(t, f.router, http.MethodGet, "/api/listings?sayfa=3", nil, sid)
	assert.Equal(t, 2, decode[listBody](t, w).CurrentPage)
	w = do(t, f.router, http.MethodGet, "/api/listings", nil, sid)
	assert.Equal(t, 2, decode[listBody](t, w).CurrentPage)
}

func TestGetRelatedAndSlug(t *testing.T) {
	f := newFixture(t)

	w := do(t, f.router, http.MethodGet, "/api/listings/abcdef0003", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"daysLeft":60`)

	w = do(t, f.router, http.MethodGet, "/api/listings/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, f.router, http.MethodGet, "/api/listings/abcdef0003/related", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rel []model.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rel))
	assert.Len(t, rel, catalog.RelatedLimit)

	w = do(t, f.router, http.MethodGet, "/api/ilan/garson-7-abcdef0007", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"abcdef0007"`)

	w = do(t, f.router, http.MethodGet, "/api/ilan/garson-8", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"abcdef0008"`)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	w := do(t, f.router, http.MethodGet, "/api/categories", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["teknoloji","genel","hizmet"]`, w.Body.String())
}

func TestMutations_RequireUser(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/listings"},
		{http.MethodPatch, "/api/listings/abcdef0001"},
		{http.MethodDelete, "/api/listings/abcdef0001"},
		{http.MethodGet, "/api/my/listings"},
	} {
		w := do(t, f.router, tc.method, tc.path, map[string]string{}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.method+" "+tc.path)
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	owner := map[string]string{"x-user-id": "u1"}

	d := listing.Draft{
		Title: "Aşçı Yardımcısı", Company: "Lezzet", Description: "Mutfak",
		Location: "İzmir", Type: "Tam Zamanlı", Category: "hizmet", SubCategory: "asci",
		ContactPhone: "0532 123 45 67",
	}
	w := do(t, f.router, http.MethodPost, "/api/listings", d, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Listing](t, w)
	assert.Equal(t, "u1", created.UserID)

	w = do(t, f.router, http.MethodPost, "/api/listings", d, owner)
	assert.Equal(t, http.StatusConflict, w.Code)

	d.Title = "Başka"
	d.ContactPhone, d.ContactEmail, d.BusinessPhone = "", "", ""
	w = do(t, f.router, http.MethodPost, "/api/listings", d, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, f.router, http.MethodPost, "/api/listings", "not an object", owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	salary := "25.000 TL"
	w = do(t, f.router, http.MethodPatch, "/api/listings/"+created.ID, listing.Patch{Salary: &salary}, owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, salary, decode[model.Listing](t, w).Salary)

	w = do(t, f.router, http.MethodPatch, "/api/listings/"+created.ID, listing.Patch{Salary: &salary},
		map[string]string{"x-user-id": "intruder"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, f.router, http.MethodGet, "/api/my/listings", nil, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Listing](t, w), 1)

	w = do(t, f.router, http.MethodDelete, "/api/listings/"+created.ID, nil, owner)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, f.router, http.MethodDelete, "/api/listings/"+created.ID, nil, owner)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExpiredPromotionReportedAsPlain(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour).UnixMilli()
	l := model.Listing{
		ID: "promo00001", UserID: "owner", Title: "Eski Vitrin", Company: "X", Description: "d",
		Location: "Bursa", Type: "Yarı Zamanlı", Category: "hizmet", SubCategory: "genel",
		CreatedAt: time.Now().UnixMilli(), Status: model.StatusActive,
		IsPremium: true, IsPromoted: true, PromotionExpiresAt: past,
	}
	require.NoError(t, f.store.Insert(context.Background(), &l))

	w := do(t, f.router, http.MethodGet, "/api/listings/promo00001", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[model.Listing](t, w)
	assert.False(t, got.IsPremium)
	assert.False(t, got.IsPromoted)
}

func TestPromotionFlow(t *testing.T) {
	store := listingtest.New(seed(time.Now())...)
	feed := listing.NewFeed(store, nil, time.Hour, nil)
	require.NoError(t, feed.Load(context.Background(), "test"))
	gw := &promotiontest.Gateway{}
	h := api.NewHandler(api.Deps{
		Listings:   listing.NewService(store, nil, nil, nil),
		Catalog:    catalog.New(feed),
		Promotions: promotion.NewService(promotiontest.NewOrders(), store, gw, nil, promotion.URLs{}, nil),
	})
	router := api.NewRouter(h, nil)
	owner := map[string]string{"x-user-id": "owner"}

	w := do(t, router, http.MethodGet, "/api/promotions/prices", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"currency":"TRY"`)

	req := promotion.Request{ListingID: "abcdef0001", Type: model.PromotionTop, DurationDays: 15}
	w = do(t, router, http.MethodPost, "/api/promotions", req, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[model.Order](t, w)
	assert.Equal(t, 60, order.Amount)
	assert.NotEmpty(t, order.PaymentURL)

	w = do(t, router, http.MethodGet, "/api/promotions/"+order.ID, nil, map[string]string{"x-user-id": "intruder"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, router, http.MethodGet, "/api/promotions/unknown", nil, owner)
	assert.Equal(t, http.StatusNotFound, w.Code)

	gw.State = promotion.GatewayCompleted
	w = do(t, router, http.MethodGet, "/api/promotions/"+order.ID, nil, owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.OrderCompleted, decode[model.Order](t, w).Status)

	w = do(t, router, http.MethodGet, "/api/listings/abcdef0001", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Listing](t, w).IsPromoted)

	req.DurationDays = 9
	w = do(t, router, http.MethodPost, "/api/promotions", req, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	gw.InitErr = promotion.ErrGateway
	req.DurationDays = 7
	w = do(t, router, http.MethodPost, "/api/promotions", req, owner)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
