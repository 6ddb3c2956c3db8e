package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"isilanlarim/internal/listing"
	"isilanlarim/internal/logger"
	"isilanlarim/internal/metrics"
	"isilanlarim/internal/model"
)

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 1000

	DefaultLocation = "Türkiye"
	DefaultType     = "Tam Zamanlı"
)

// Inserter is the conditional insert of the listing store.
type Inserter interface {
	Insert(ctx context.Context, l *model.Listing) error
}

// Options configures a Worker.
type Options struct {
	Sources     []string
	Delay       time.Duration // pause between sources
	AdminEmail  string
	AdminUserID string
}

// Report summarises one scrape cycle.
type Report struct {
	Sources      int
	SourceErrors int
	Found        int
	Rejected     int
	Inserted     int
	Duplicates   int
	Failed       int
}

// Worker runs scrape cycles: fetch each source, keep complete postings,
// classify them and insert the ones whose title is new.
type Worker struct {
	store    Inserter
	fetcher  Fetcher
	events   listing.Publisher
	notifier listing.Notifier
	opts     Options
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewWorker wires a Worker. events and notifier may be nil.
func NewWorker(store Inserter, fetcher Fetcher, events listing.Publisher, notifier listing.Notifier, opts Options, m *metrics.Metrics) *Worker {
	if events == nil {
		events = listing.NopPublisher{}
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Worker{
		store:    store,
		fetcher:  fetcher,
		events:   events,
		notifier: notifier,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  m,
		log:      logger.For("scraper"),
		now:      time.Now,
		newID:    listing.NewID,
	}
}

// Run executes one cycle. A failing source is logged and skipped; only a
// cancelled context stops the cycle early.
func (w *Worker) Run(ctx context.Context) (Report, error) {
	var rep Report
	w.log.Info().Int("sources", len(w.opts.Sources)).Msg("scrape cycle started")

	for _, src := range w.opts.Sources {
		if err := w.limiter.Wait(ctx); err != nil {
			return rep, err
		}
		rep.Sources++

		candidates, err := w.fetcher.Fetch(ctx, src)
		w.metrics.SourceFetched(err)
		if err != nil {
			rep.SourceErrors++
			w.log.Warn().Err(err).Str("source", src).Msg("source failed, continuing")
			continue
		}
		rep.Found += len(candidates)

		for _, c := range candidates {
			w.ingest(ctx, c, &rep)
		}
	}

	w.metrics.Scraped("inserted", rep.Inserted)
	w.metrics.Scraped("duplicate", rep.Duplicates)
	w.metrics.Scraped("rejected", rep.Rejected)
	w.metrics.Scraped("failed", rep.Failed)

	w.log.Info().
		Int("found", rep.Found).Int("inserted", rep.Inserted).
		Int("duplicates", rep.Duplicates).Int("rejected", rep.Rejected).
		Int("sourceErrors", rep.SourceErrors).Msg("scrape cycle done")

	if rep.Inserted > 0 && w.notifier != nil {
		w.notifier.Trigger(fmt.Sprintf("scrape inserted %d", rep.Inserted))
	}
	return rep, ctx.Err()
}

func (w *Worker) ingest(ctx context.Context, c model.Candidate, rep *Report) {
	l, ok := w.toListing(c)
	if !ok {
		rep.Rejected++
		return
	}

	err := w.store.Insert(ctx, l)
	switch {
	case errors.Is(err, listing.ErrDuplicateTitle):
		rep.Duplicates++
	case err != nil:
		rep.Failed++
		w.log.Error().Err(err).Str("title", l.Title).Msg("insert failed")
	default:
		rep.Inserted++
		w.log.Info().Str("listingId", l.ID).Str("title", l.Title).Str("category", l.Category).Msg("listing added")
		w.events.Publish(ctx, listing.OpCreated, l.ID)
	}
}

// toListing applies the acceptance rules: title, description and company
// must be non-empty after trimming; title and description are truncated.
func (w *Worker) toListing(c model.Candidate) (*model.Listing, bool) {
	title := strings.TrimSpace(c.Title)
	desc := strings.TrimSpace(c.Description)
	company := strings.TrimSpace(c.Company)
	if title == "" || desc == "" || company == "" {
		return nil, false
	}
	title = truncate(title, MaxTitleLen)
	desc = truncate(desc, MaxDescriptionLen)

	cat := Classify(title + " " + desc)
	return &model.Listing{
		ID:           w.newID(),
		UserID:       w.opts.AdminUserID,
		Title:        title,
		Company:      company,
		Description:  desc,
		Location:     DefaultLocation,
		Type:         DefaultType,
		Category:     cat.Main,
		SubCategory:  cat.Sub,
		ContactEmail: w.opts.AdminEmail,
		CreatedAt:    w.now().UnixMilli(),
		Status:       model.StatusActive,
	}, true
}

// truncate cuts s to at most n runes, then trims trailing space.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
