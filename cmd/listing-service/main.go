// isilanlarim listing-service
//
// Public job board backend. Exposes:
//   - the REST API used by the web client (listings, search, sessions,
//     promotions) and the sitemap documents, on LISTING_PORT
//   - the ListingService gRPC API used by the gateway, on GRPC_PORT
//
// Every listing change is published on EVENT_LISTING_CHANGED and triggers
// the sitemap refresh chain (rebuild, cache, engine ping, build hook).
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"isilanlarim/internal/api"
	"isilanlarim/internal/catalog"
	"isilanlarim/internal/config"
	"isilanlarim/internal/db"
	"isilanlarim/internal/grpcserver"
	"isilanlarim/internal/listing"
	"isilanlarim/internal/logger"
	"isilanlarim/internal/metrics"
	"isilanlarim/internal/promotion"
	"isilanlarim/internal/session"
	"isilanlarim/internal/sitemap"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[listing-service] config error: %v\n", err)
		os.Exit(1)
	}
	logger.Init("listing-service", cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	log.Info().Msg("postgres connected")

	// ── Redis ────────────────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer rdb.Close()
	log.Info().Msg("redis connected")

	// ── Domain wiring ────────────────────────────────────────────────────────
	m := metrics.New()
	store := listing.NewPostgresStore(pool)
	events := listing.NewRedisEvents(rdb)
	feed := listing.NewFeed(store, rdb, time.Minute, m)

	builder := sitemap.NewBuilder(cfg.SiteURL, store, m)
	cache := sitemap.NewCache(rdb)
	var pinger *sitemap.Pinger
	if cfg.PingEnabled {
		pinger = sitemap.NewPinger(cfg.PingEngines, time.Second, cfg.HTTPTimeout, m)
	}
	refresher := sitemap.NewRefresher(builder, sitemap.RefresherConfig{
		Cache:   cache,
		Pinger:  pinger,
		HookURL: cfg.BuildHookURL,
		Timeout: cfg.HTTPTimeout,
	})

	listings := listing.NewService(store, events, refresher, m)
	promotions := promotion.NewService(
		promotion.NewPostgresOrders(pool),
		store,
		promotion.NewPYTRGateway(cfg.PYTRBaseURL, cfg.PYTRMerchantID, cfg.PYTRAPIKey, cfg.HTTPTimeout),
		events,
		promotion.URLs{Return: cfg.PaymentReturn, Cancel: cfg.PaymentCancel},
		m,
	)
	cat := catalog.New(feed)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed stopped")
		}
	}()
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()

	// ── HTTP server ──────────────────────────────────────────────────────────
	h := api.NewHandler(api.Deps{
		Listings:   listings,
		Catalog:    cat,
		Promotions: promotions,
		Sessions:   session.NewStore(rdb, session.DefaultTTL),
		Sitemaps:   sitemap.NewHandler(builder, cache),
		SiteURL:    cfg.SiteURL,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(h, m),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Info().Str("version", version).Str("port", cfg.Port).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.GRPCPort).Msg("grpc listen")
	}
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(listings, cat))
	go func() {
		log.Info().Str("port", cfg.GRPCPort).Msg("grpc listening")
		if err := gs.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc server")
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
	gs.GracefulStop()
	wg.Wait()
	log.Info().Msg("stopped")
}
