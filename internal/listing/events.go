package listing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChangedChannel is the Redis pub/sub channel carrying listing change events.
const ChangedChannel = "EVENT_LISTING_CHANGED"

// Op names the mutation that produced an event.
type Op string

const (
	OpCreated  Op = "created"
	OpUpdated  Op = "updated"
	OpDeleted  Op = "deleted"
	OpPromoted Op = "promoted"
	OpSwept    Op = "swept"
)

// Event is the JSON payload published on ChangedChannel.
type Event struct {
	Type      string `json:"type"`
	Op        Op     `json:"op"`
	ListingID string `json:"listingId,omitempty"`
	At        int64  `json:"at"`
}

// Publisher announces listing changes to live consumers.
type Publisher interface {
	Publish(ctx context.Context, op Op, listingID string)
}

// RedisEvents publishes change events on Redis. Publishing is non-fatal: a
// lost event is repaired by the feed's periodic resync.
type RedisEvents struct {
	rdb *redis.Client
}

// NewRedisEvents returns a Publisher on rdb.
func NewRedisEvents(rdb *redis.Client) *RedisEvents {
	return &RedisEvents{rdb: rdb}
}

// Publish sends one event and logs failures.
func (e *RedisEvents) Publish(ctx context.Context, op Op, listingID string) {
	payload, _ := json.Marshal(Event{
		Type:      ChangedChannel,
		Op:        op,
		ListingID: listingID,
		At:        time.Now().UnixMilli(),
	})
	if err := e.rdb.Publish(ctx, ChangedChannel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("op", string(op)).Str("listingId", listingID).Msg("publish listing event failed")
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Op, string) {}
