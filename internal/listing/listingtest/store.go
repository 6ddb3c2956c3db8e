// Package listingtest provides an in-memory listing.Store for tests.
package listingtest

import (
	"context"
	"slices"
	"sync"

	"isilanlarim/internal/listing"
	"isilanlarim/internal/model"
)

// Store is a map-backed listing.Store. Set Err to make every call fail.
type Store struct {
	mu       sync.Mutex
	listings map[string]model.Listing
	Err      error
}

// New returns a Store seeded with ls.
func New(ls ...model.Listing) *Store {
	s := &Store{listings: make(map[string]model.Listing)}
	for _, l := range ls {
		s.listings[l.ID] = l
	}
	return s
}

func (s *Store) sorted(keep func(model.Listing) bool) []model.Listing {
	out := make([]model.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if keep(l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b model.Listing) int {
		switch {
		case a.CreatedAt > b.CreatedAt:
			return -1
		case a.CreatedAt < b.CreatedAt:
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out
}

func (s *Store) All(context.Context) ([]model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.sorted(func(model.Listing) bool { return true }), nil
}

func (s *Store) Get(_ context.Context, id string) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	l, ok := s.listings[id]
	if !ok {
		return nil, listing.ErrNotFound
	}
	return &l, nil
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.sorted(func(l model.Listing) bool { return l.UserID == userID }), nil
}

func (s *Store) titleTaken(title, exceptID string) bool {
	for id, l := range s.listings {
		if id != exceptID && l.Title == title {
			return true
		}
	}
	return false
}

func (s *Store) Insert(_ context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.titleTaken(l.Title, "") {
		return listing.ErrDuplicateTitle
	}
	s.listings[l.ID] = *l
	return nil
}

func (s *Store) Update(_ context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	prev, ok := s.listings[l.ID]
	if !ok {
		return listing.ErrNotFound
	}
	if s.titleTaken(l.Title, l.ID) {
		return listing.ErrDuplicateTitle
	}
	next := *l
	next.CreatedAt, next.UserID = prev.CreatedAt, prev.UserID
	s.listings[l.ID] = next
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.listings[id]; !ok {
		return listing.ErrNotFound
	}
	delete(s.listings, id)
	return nil
}

func (s *Store) ClearExpiredPromotions(_ context.Context, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for id, l := range s.listings {
		if l.PromotionExpiresAt > 0 && l.PromotionExpiresAt < now {
			l.IsPremium, l.IsPromoted, l.PromotionExpiresAt, l.UpdatedAt = false, false, 0, now
			s.listings[id] = l
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored listings.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listings)
}
