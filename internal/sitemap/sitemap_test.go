package sitemap_test

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isilanlarim/internal/model"
	"isilanlarim/internal/sitemap"
)

var genTime = time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)

type parsedURLSet struct {
	URLs []struct {
		Loc        string `xml:"loc"`
		LastMod    string `xml:"lastmod"`
		ChangeFreq string `xml:"changefreq"`
		Priority   string `xml:"priority"`
	} `xml:"url"`
}

func parse(t *testing.T, doc []byte) parsedURLSet {
	t.Helper()
	var set parsedURLSet
	require.NoError(t, xml.Unmarshal(doc, &set), "document must be well-formed:\n%s", doc)
	return set
}

type fakeSource struct {
	listings []model.Listing
	err      error
}

func (f fakeSource) All(context.Context) ([]model.Listing, error) { return f.listings, f.err }

func ms(t time.Time) int64 { return t.UnixMilli() }

func fixtures() []model.Listing {
	return []model.Listing{
		{ID: "a1b2c3d4e5", Title: "Aşçı aranıyor", Status: model.StatusActive,
			CreatedAt: ms(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC))},
		{ID: "f6g7h8i9j0", Title: "Satış & Pazarlama <Uzmanı>", Status: model.StatusActive,
			CreatedAt: ms(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
			UpdatedAt: ms(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))},
		{ID: "k1l2m3n4o5", Title: "Kapanmış ilan", Status: model.StatusInactive,
			CreatedAt: ms(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))},
	}
}

func TestBuildFrom_OnlyActiveNewestFirst(t *testing.T) {
	doc := sitemap.BuildFrom("https://isilanlarim.org/", fixtures(), genTime)

	set := parse(t, doc.XML)
	require.Len(t, set.URLs, 2)
	assert.Equal(t, 2, doc.Active)
	assert.Equal(t, 3, doc.Total)
	assert.False(t, doc.Degraded())

	assert.Equal(t, "https://isilanlarim.org/ilan/satis-pazarlama-uzmani-f6g7h8i9j0", set.URLs[0].Loc)
	assert.Equal(t, "2024-03-05", set.URLs[0].LastMod, "updatedAt wins over createdAt")
	assert.Equal(t, "https://isilanlarim.org/ilan/asci-araniyor-a1b2c3d4e5", set.URLs[1].Loc)
	assert.Equal(t, "2024-03-01", set.URLs[1].LastMod)
	for _, u := range set.URLs {
		assert.Equal(t, "weekly", u.ChangeFreq)
		assert.Equal(t, "0.8", u.Priority)
	}
}

func TestBuildFrom_BlankTitleStillListed(t *testing.T) {
	all := append(fixtures(), model.Listing{ID: "z9y8x7w6v5", Title: "   ", Status: model.StatusActive,
		CreatedAt: ms(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})
	doc := sitemap.BuildFrom("https://isilanlarim.org", all, genTime)

	set := parse(t, doc.XML)
	require.Len(t, set.URLs, 3)
	assert.Equal(t, 3, doc.Active)
	assert.Equal(t, "https://isilanlarim.org/ilan/ilan-z9y8x7w6v5", set.URLs[2].Loc)
}

func TestBuildFrom_HeaderAndComments(t *testing.T) {
	doc := string(sitemap.BuildFrom("https://isilanlarim.org", fixtures(), genTime).XML)

	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, `xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"`)
	assert.Contains(t, doc, "<!-- Generated on 2024-03-10T08:30:00Z -->")
	assert.Contains(t, doc, "<!-- Total active jobs: 2 -->")
}

func TestBuildFrom_Empty(t *testing.T) {
	doc := sitemap.BuildFrom("https://isilanlarim.org", nil, genTime)

	assert.Empty(t, parse(t, doc.XML).URLs)
	assert.Contains(t, string(doc.XML), "Total active jobs: 0")
	assert.False(t, doc.Degraded())
}

func TestBuildFrom_EscapesSiteURL(t *testing.T) {
	doc := sitemap.BuildFrom("https://example.org/?a=1&b=2", fixtures()[:1], genTime)
	assert.Contains(t, string(doc.XML), "a=1&amp;b=2")
	assert.Equal(t, "https://example.org/?a=1&b=2/ilan/asci-araniyor-a1b2c3d4e5", parse(t, doc.XML).URLs[0].Loc)
}

func TestBuild_SourceFailureIsAnnotated(t *testing.T) {
	b := sitemap.NewBuilder("https://isilanlarim.org", fakeSource{err: errors.New(`db <down> & "gone" -- retry`)}, nil)

	doc := b.Build(context.Background())

	assert.True(t, doc.Degraded())
	assert.Empty(t, parse(t, doc.XML).URLs)
	body := string(doc.XML)
	assert.Contains(t, body, "Error: db &lt;down&gt; &amp; &#34;gone&#34;")
	inner := strings.NewReplacer("<!--", "", "-->", "").Replace(body)
	assert.NotContains(t, inner, "--", "comment bodies must not contain a double hyphen")
}

func TestBuildIndex(t *testing.T) {
	out := sitemap.BuildIndex("https://isilanlarim.org", sitemap.ChildSitemaps, genTime)

	var idx struct {
		Sitemaps []struct {
			Loc string `xml:"loc"`
		} `xml:"sitemap"`
	}
	require.NoError(t, xml.Unmarshal(out, &idx))
	require.Len(t, idx.Sitemaps, len(sitemap.ChildSitemaps))
	assert.Equal(t, "https://isilanlarim.org/sitemap-jobs.xml", idx.Sitemaps[1].Loc)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCache_RoundTripSkipsDegraded(t *testing.T) {
	ctx := context.Background()
	cache := sitemap.NewCache(newRedis(t))

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, sitemap.ErrorDocument(errors.New("x"), genTime)))
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok, "degraded documents are not cached")

	doc := sitemap.BuildFrom("https://isilanlarim.org", fixtures(), genTime)
	require.NoError(t, cache.Put(ctx, doc))
	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, doc.XML, got.XML)
	assert.Equal(t, 2, got.Active)
}

func TestHandler_Jobs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	b := sitemap.NewBuilder("https://isilanlarim.org", fakeSource{listings: fixtures()}, nil)
	sitemap.NewHandler(b, sitemap.NewCache(newRedis(t))).Register(r)

	for range 2 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sitemap-jobs.xml", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "2", w.Header().Get("X-Active-Jobs"))
		assert.Len(t, parse(t, w.Body.Bytes()).URLs, 2)
	}
}

func TestHandler_DegradedIs503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	b := sitemap.NewBuilder("https://isilanlarim.org", fakeSource{err: errors.New("timeout")}, nil)
	sitemap.NewHandler(b, nil).Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sitemap-jobs.xml", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Error: timeout")
}

func TestPinger_ContinuesPastFailures(t *testing.T) {
	var hits atomic.Int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NotEmpty(t, r.URL.Query().Get("sitemap"))
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	p := sitemap.NewPinger([]string{broken.URL + "/ping", ok.URL + "/ping"}, time.Millisecond, time.Second, nil)
	rep := p.Ping(context.Background(), []string{"https://isilanlarim.org/sitemap.xml", "https://isilanlarim.org/sitemap-jobs.xml"})

	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 2, rep.Sent)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRefresher_RefreshCachesPingsAndHooks(t *testing.T) {
	var pings, hooks atomic.Int32
	engine := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { pings.Add(1) }))
	defer engine.Close()
	hook := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		hooks.Add(1)
	}))
	defer hook.Close()

	cache := sitemap.NewCache(newRedis(t))
	b := sitemap.NewBuilder("https://isilanlarim.org", fakeSource{listings: fixtures()}, nil)
	r := sitemap.NewRefresher(b, sitemap.RefresherConfig{
		Cache:   cache,
		Pinger:  sitemap.NewPinger([]string{engine.URL}, 0, time.Second, nil),
		HookURL: hook.URL,
	})

	require.NoError(t, r.Refresh(context.Background()))

	_, ok, _ := cache.Get(context.Background())
	assert.True(t, ok)
	assert.Equal(t, int32(len(r.SitemapURLs())), pings.Load())
	assert.Equal(t, int32(1), hooks.Load())
}

func TestRefresher_BuildFailureStopsChain(t *testing.T) {
	var pings atomic.Int32
	engine := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { pings.Add(1) }))
	defer engine.Close()

	b := sitemap.NewBuilder("https://isilanlarim.org", fakeSource{err: errors.New("down")}, nil)
	r := sitemap.NewRefresher(b, sitemap.RefresherConfig{Pinger: sitemap.NewPinger([]string{engine.URL}, 0, time.Second, nil)})

	assert.Error(t, r.Refresh(context.Background()))
	assert.Zero(t, pings.Load())
}

func TestRefresher_TriggerIsNonBlocking(t *testing.T) {
	b := sitemap.NewBuilder("https://isilanlarim.org", fakeSource{}, nil)
	r := sitemap.NewRefresher(b, sitemap.RefresherConfig{})

	done := make(chan struct{})
	go func() {
		for range 10 {
			r.Trigger("test")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked without a running consumer")
	}
}
