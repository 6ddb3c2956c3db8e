// isilanlarim discovery-service
//
// Scheduled background work in the site's time zone:
//   - scrape:  fetch the external job boards and insert new postings
//   - sitemap: rebuild and cache the jobs sitemap, ping engines, build hook
//   - sweep:   clear promotion flags whose window has passed
//
// Serves /health and /metrics on DISCOVERY_PORT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"isilanlarim/internal/config"
	"isilanlarim/internal/db"
	"isilanlarim/internal/listing"
	"isilanlarim/internal/logger"
	"isilanlarim/internal/metrics"
	"isilanlarim/internal/promotion"
	"isilanlarim/internal/scheduler"
	"isilanlarim/internal/scraper"
	"isilanlarim/internal/sitemap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[discovery-service] config error: %v\n", err)
		os.Exit(1)
	}
	logger.Init("discovery-service", cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()

	// ── Domain wiring ────────────────────────────────────────────────────────
	m := metrics.New()
	store := listing.NewPostgresStore(pool)
	events := listing.NewRedisEvents(rdb)

	var pinger *sitemap.Pinger
	if cfg.PingEnabled {
		pinger = sitemap.NewPinger(cfg.PingEngines, time.Second, cfg.HTTPTimeout, m)
	}
	refresher := sitemap.NewRefresher(sitemap.NewBuilder(cfg.SiteURL, store, m), sitemap.RefresherConfig{
		Cache:   sitemap.NewCache(rdb),
		Pinger:  pinger,
		HookURL: cfg.BuildHookURL,
		Timeout: cfg.HTTPTimeout,
	})
	go refresher.Run(ctx)

	worker := scraper.NewWorker(store,
		scraper.NewBoardFetcher(cfg.ScrapeMaxPerSource, cfg.HTTPTimeout),
		events, refresher,
		scraper.Options{
			Sources:     cfg.ScrapeSources,
			Delay:       cfg.ScrapeDelay,
			AdminEmail:  cfg.AdminEmail,
			AdminUserID: cfg.AdminUserID,
		}, m)

	promotions := promotion.NewService(promotion.NewPostgresOrders(pool), store, nil, events, promotion.URLs{}, m)

	sched := scheduler.New(cfg.Location(),
		scheduler.Job{
			Name: "scrape", Spec: cfg.ScrapeSchedule, RunOnStart: true, Timeout: 30 * time.Minute,
			Run: func(ctx context.Context) error {
				rep, err := worker.Run(ctx)
				log.Info().Interface("report", rep).Msg("scrape cycle finished")
				return err
			},
		},
		scheduler.Job{
			Name: "sitemap", Spec: cfg.SitemapSchedule, Timeout: 5 * time.Minute,
			Run: refresher.Refresh,
		},
		scheduler.Job{
			Name: "promotion-sweep", Spec: cfg.SweepSchedule, RunOnStart: true, Timeout: time.Minute,
			Run: func(ctx context.Context) error {
				_, err := promotions.SweepExpired(ctx)
				return err
			},
		},
	)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery(), m.GinMiddleware())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "discovery-service", "version": version})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:         ":" + cfg.DiscoveryPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("version", version).Str("port", cfg.DiscoveryPort).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	sched.Stop()
	log.Info().Msg("stopped")
}
