package listing

import "errors"

// ErrNotFound is returned when a listing is missing, or not active where only
// active listings are visible.
var ErrNotFound = errors.New("listing not found")

// ErrDuplicateTitle is returned when another listing already uses the title.
var ErrDuplicateTitle = errors.New("a listing with this title already exists")

// ErrForbidden is returned when the caller does not own the listing.
var ErrForbidden = errors.New("listing belongs to another user")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
