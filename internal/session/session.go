// Package session keeps each browser session's filter criteria and page in
// Redis, so a visitor coming back to the list finds it as they left it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"isilanlarim/internal/model"
)

// DefaultTTL is how long an idle session is remembered.
const DefaultTTL = 24 * time.Hour

// State is what a session remembers.
type State struct {
	Criteria model.Criteria `json:"criteria"`
	Page     int            `json:"page"`
}

// Store reads and writes session state.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a Store on rdb.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(id string) string { return "session:" + id }

// Load returns the saved state, or the zero State with page 1 when nothing
// is stored. Loading refreshes the expiry.
func (s *Store) Load(ctx context.Context, id string) (State, error) {
	raw, err := s.rdb.GetEx(ctx, key(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{Page: 1}, nil
	}
	if err != nil {
		return State{Page: 1}, fmt.Errorf("session load: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{Page: 1}, fmt.Errorf("session decode: %w", err)
	}
	if st.Page < 1 {
		st.Page = 1
	}
	return st, nil
}

// Save stores st under id.
func (s *Store) Save(ctx context.Context, id string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.rdb.Set(ctx, key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

// Clear forgets the session.
func (s *Store) Clear(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, key(id)).Err()
}
