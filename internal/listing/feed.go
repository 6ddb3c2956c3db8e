package listing

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"isilanlarim/internal/logger"
	"isilanlarim/internal/metrics"
	"isilanlarim/internal/model"
	"isilanlarim/internal/search"
)

// Loader reads the full listing collection.
type Loader interface {
	All(ctx context.Context) ([]model.Listing, error)
}

// Snapshot is one immutable, normalized view of the active listings.
// Version increases with every successful load.
type Snapshot struct {
	Version  uint64
	Listings []model.Listing
	LoadedAt time.Time
}

// Normalize keeps active listings, newest first.
func Normalize(all []model.Listing) []model.Listing {
	out := make([]model.Listing, 0, len(all))
	for _, l := range all {
		if l.IsActive() {
			out = append(out, l)
		}
	}
	search.SortByCreated(out, model.SortNewest)
	return out
}

// Feed keeps the current snapshot of active listings and pushes every new
// snapshot to subscribers. It reloads on change events from Redis and on a
// periodic resync, so missed events only delay freshness.
type Feed struct {
	loader  Loader
	rdb     *redis.Client
	resync  time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu      sync.RWMutex
	snap    Snapshot
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// NewFeed builds a Feed. rdb may be nil, in which case only the periodic
// resync refreshes the snapshot.
func NewFeed(loader Loader, rdb *redis.Client, resync time.Duration, m *metrics.Metrics) *Feed {
	if resync <= 0 {
		resync = time.Minute
	}
	return &Feed{
		loader:  loader,
		rdb:     rdb,
		resync:  resync,
		metrics: m,
		log:     logger.For("feed"),
		subs:    make(map[uint64]chan Snapshot),
	}
}

// Snapshot returns the current snapshot.
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

// Load re-reads the store and publishes a new snapshot. On failure the
// previous snapshot stays in place.
func (f *Feed) Load(ctx context.Context, trigger string) error {
	all, err := f.loader.All(ctx)
	if err != nil {
		f.metrics.FeedReloaded(trigger, 0, err)
		f.log.Error().Err(err).Str("trigger", trigger).Msg("feed reload failed")
		return err
	}
	listings := Normalize(all)

	f.mu.Lock()
	f.snap = Snapshot{Version: f.snap.Version + 1, Listings: listings, LoadedAt: time.Now()}
	snap := f.snap
	for _, ch := range f.subs {
		// Keep only the latest snapshot for slow subscribers.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	f.mu.Unlock()

	f.metrics.FeedReloaded(trigger, len(listings), nil)
	f.log.Debug().Str("trigger", trigger).Uint64("version", snap.Version).Int("active", len(listings)).Msg("feed reloaded")
	return nil
}

// Subscribe returns a channel receiving every new snapshot (latest wins) and
// a cancel func that must be called to release it.
func (f *Feed) Subscribe() (<-chan Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSub
	f.nextSub++
	ch := make(chan Snapshot, 1)
	if f.snap.Version > 0 {
		ch <- f.snap
	}
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
}

// Run loads the first snapshot and then follows change events until ctx is
// cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.Load(ctx, "startup"); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	var events <-chan *redis.Message
	if f.rdb != nil {
		pubsub := f.rdb.Subscribe(ctx, ChangedChannel)
		defer pubsub.Close()
		events = pubsub.Channel()
	}

	ticker := time.NewTicker(f.resync)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			_ = f.Load(ctx, "event")
		case <-ticker.C:
			_ = f.Load(ctx, "resync")
		}
	}
}
