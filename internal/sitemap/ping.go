package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"isilanlarim/internal/logger"
	"isilanlarim/internal/metrics"
)

// PingReport counts one notification round.
type PingReport struct {
	Sent   int
	Failed int
}

// Pinger notifies search engines that sitemaps changed. Requests go out one
// at a time with a fixed delay between them, each bounded by a timeout.
// Failures are logged and counted, never returned.
type Pinger struct {
	client  *http.Client
	engines []string
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewPinger returns a Pinger for the given engine endpoints, e.g.
// "https://www.bing.com/ping".
func NewPinger(engines []string, delay, timeout time.Duration, m *metrics.Metrics) *Pinger {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pinger{
		client:  &http.Client{Timeout: timeout},
		engines: engines,
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
		log:     logger.For("pinger"),
	}
}

// Ping sends GET {engine}?sitemap={url} for every engine and sitemap URL.
func (p *Pinger) Ping(ctx context.Context, sitemapURLs []string) PingReport {
	var rep PingReport
	for _, engine := range p.engines {
		for _, sm := range sitemapURLs {
			if err := p.limiter.Wait(ctx); err != nil {
				return rep
			}
			err := p.ping(ctx, engine, sm)
			p.metrics.Pinged(host(engine), err == nil)
			if err != nil {
				rep.Failed++
				p.log.Warn().Err(err).Str("engine", engine).Str("sitemap", sm).Msg("search engine ping failed")
				continue
			}
			rep.Sent++
		}
	}
	p.log.Info().Int("sent", rep.Sent).Int("failed", rep.Failed).Msg("search engines notified")
	return rep
}

func (p *Pinger) ping(ctx context.Context, engine, sitemapURL string) error {
	target := engine + "?sitemap=" + url.QueryEscape(sitemapURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func host(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
