package sitemap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"isilanlarim/internal/logger"
)

// Refresher runs the chain that follows every change of the public listing
// set: rebuild and cache the jobs sitemap, ping search engines, then poke
// the static-site build hook. Every step is best-effort.
type Refresher struct {
	builder *Builder
	cache   *Cache
	pinger  *Pinger
	hookURL string
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger

	pending chan string
}

// RefresherConfig wires the optional parts of a Refresher. Nil Cache or
// Pinger and an empty HookURL skip the corresponding step.
type RefresherConfig struct {
	Cache   *Cache
	Pinger  *Pinger
	HookURL string
	Timeout time.Duration
}

// NewRefresher returns a Refresher around builder.
func NewRefresher(builder *Builder, cfg RefresherConfig) *Refresher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Refresher{
		builder: builder,
		cache:   cfg.Cache,
		pinger:  cfg.Pinger,
		hookURL: cfg.HookURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		timeout: cfg.Timeout,
		log:     logger.For("sitemap"),
		pending: make(chan string, 1),
	}
}

// Trigger schedules a refresh without blocking. Triggers arriving while one
// is already queued coalesce into it. Run must be active to consume them.
func (r *Refresher) Trigger(reason string) {
	select {
	case r.pending <- reason:
	default:
		r.log.Debug().Str("reason", reason).Msg("refresh already queued")
	}
}

// Run consumes triggers until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-r.pending:
			rctx, cancel := context.WithTimeout(ctx, 4*r.timeout)
			if err := r.Refresh(rctx); err != nil {
				r.log.Error().Err(err).Str("reason", reason).Msg("sitemap refresh failed")
			}
			cancel()
		}
	}
}

// Refresh runs the chain synchronously. It returns the build failure, if
// any; ping and hook failures are only logged.
func (r *Refresher) Refresh(ctx context.Context) error {
	doc := r.builder.Build(ctx)
	if doc.Degraded() {
		return errors.New(doc.Err)
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, doc); err != nil {
			r.log.Warn().Err(err).Msg("sitemap cache update failed")
		}
	}
	r.log.Info().Int("active", doc.Active).Msg("sitemap rebuilt")

	if r.pinger != nil {
		r.pinger.Ping(ctx, r.SitemapURLs())
	}
	if r.hookURL != "" {
		if err := r.buildHook(ctx); err != nil {
			r.log.Warn().Err(err).Msg("build hook failed")
		}
	}
	return nil
}

// SitemapURLs are the absolute URLs announced to search engines.
func (r *Refresher) SitemapURLs() []string {
	base := r.builder.SiteURL()
	urls := []string{base + IndexPath}
	for _, c := range ChildSitemaps {
		urls = append(urls, base+c)
	}
	return urls
}

func (r *Refresher) buildHook(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.hookURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("build hook status %d", resp.StatusCode)
	}
	return nil
}
