package model

import "fmt"

// Status is the lifecycle state of a listing.
//
//	active ──► inactive
//	   │
//	   └─────► expired
//
// inactive and expired are terminal; nothing moves a listing back to active.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

var listingTransitions = map[Status][]Status{
	StatusActive: {StatusInactive, StatusExpired},
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusActive, StatusInactive, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}

// IsTransitionAllowed returns true when moving a listing from → to is
// permitted. Staying in the same state is not a transition.
func IsTransitionAllowed(from, to Status) bool {
	return allowed(listingTransitions, from, to)
}

func allowed[S comparable](graph map[S][]S, from, to S) bool {
	next, ok := graph[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
