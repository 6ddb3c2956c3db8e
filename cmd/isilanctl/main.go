// isilanctl is the operator CLI: one-off runs of the discovery jobs and
// sitemap tooling against the configured database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"isilanlarim/internal/config"
	"isilanlarim/internal/db"
	"isilanlarim/internal/listing"
	"isilanlarim/internal/logger"
	"isilanlarim/internal/promotion"
	"isilanlarim/internal/scraper"
	"isilanlarim/internal/sitemap"
)

const version = "1.0.0"

var (
	cfg   *config.Config
	debug bool

	rootCmd = &cobra.Command{
		Use:           "isilanctl",
		Short:         "Operator tooling for the isilanlarim job board",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			level := cfg.LogLevel
			if debug {
				level = "debug"
			}
			logger.Init("isilanctl", level, true)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:               "version",
		Short:             "Print the version number",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "isilanctl version %s\n", version)
		},
	})
	rootCmd.AddCommand(sitemapCommand(), scrapeCommand(), promotionsCommand(), pingCommand())
}

// connect opens the database pool and applies migrations.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ─── sitemap ─────────────────────────────────────────────────────────────────

func sitemapCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "sitemap", Short: "Sitemap tooling"}

	var out string
	build := &cobra.Command{
		Use:   "build",
		Short: "Render the jobs sitemap from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			doc := sitemap.NewBuilder(cfg.SiteURL, listing.NewPostgresStore(pool), nil).Build(ctx)
			if doc.Degraded() {
				return fmt.Errorf("sitemap build: %s", doc.Err)
			}
			if err := write(cmd, out, doc.XML); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d active of %d listings\n", doc.Active, doc.Total)
			return nil
		},
	}
	build.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")

	index := &cobra.Command{
		Use:   "index",
		Short: "Render the sitemap index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return write(cmd, out, sitemap.BuildIndex(cfg.SiteURL, sitemap.ChildSitemaps, time.Now()))
		},
	}
	index.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild, cache and announce the jobs sitemap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			var pinger *sitemap.Pinger
			if cfg.PingEnabled {
				pinger = sitemap.NewPinger(cfg.PingEngines, time.Second, cfg.HTTPTimeout, nil)
			}
			r := sitemap.NewRefresher(sitemap.NewBuilder(cfg.SiteURL, listing.NewPostgresStore(pool), nil), sitemap.RefresherConfig{
				Cache:   sitemap.NewCache(rdb),
				Pinger:  pinger,
				HookURL: cfg.BuildHookURL,
				Timeout: cfg.HTTPTimeout,
			})
			return r.Refresh(ctx)
		},
	}

	cmd.AddCommand(build, index, refresh)
	return cmd
}

func write(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ─── scrape ──────────────────────────────────────────────────────────────────

func scrapeCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape cycle over the configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fetcher := scraper.NewBoardFetcher(cfg.ScrapeMaxPerSource, cfg.HTTPTimeout)

			if dryRun {
				for _, src := range cfg.ScrapeSources {
					cands, err := fetcher.Fetch(ctx, src)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", src, err)
						continue
					}
					for _, c := range cands {
						cat := scraper.Classify(c.Title + " " + c.Description)
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s/%s\t%s\n", c.Title, cat.Main, cat.Sub, c.SourceURL)
					}
				}
				return nil
			}

			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			w := scraper.NewWorker(listing.NewPostgresStore(pool), fetcher, listing.NewRedisEvents(rdb), nil,
				scraper.Options{
					Sources:     cfg.ScrapeSources,
					Delay:       cfg.ScrapeDelay,
					AdminEmail:  cfg.AdminEmail,
					AdminUserID: cfg.AdminUserID,
				}, nil)
			rep, err := w.Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "sources=%d errors=%d found=%d rejected=%d inserted=%d duplicates=%d failed=%d\n",
				rep.Sources, rep.SourceErrors, rep.Found, rep.Rejected, rep.Inserted, rep.Duplicates, rep.Failed)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and classify only, do not insert")
	return cmd
}

// ─── promotions ──────────────────────────────────────────────────────────────

func promotionsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "promotions", Short: "Promotion maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Clear promotion flags whose window has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			store := listing.NewPostgresStore(pool)
			svc := promotion.NewService(promotion.NewPostgresOrders(pool), store, nil, listing.NewRedisEvents(rdb), promotion.URLs{}, nil)
			n, err := svc.SweepExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d listings\n", n)
			return nil
		},
	})
	return cmd
}

// ─── ping ────────────────────────────────────────────────────────────────────

func pingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Announce the sitemaps to the configured search engines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			urls := []string{cfg.SiteURL + sitemap.IndexPath}
			for _, c := range sitemap.ChildSitemaps {
				urls = append(urls, cfg.SiteURL+c)
			}
			rep := sitemap.NewPinger(cfg.PingEngines, time.Second, cfg.HTTPTimeout, nil).Ping(cmd.Context(), urls)
			fmt.Fprintf(cmd.OutOrStdout(), "sent=%d failed=%d\n", rep.Sent, rep.Failed)
			return nil
		},
	}
}
