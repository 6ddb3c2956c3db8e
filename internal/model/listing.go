// Package model defines the shared data structures of the job-listing backend.
package model

import "time"

// RetentionDays is how long a listing stays visible after creation.
const RetentionDays = 60

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// Listing is one job posting. Timestamps are epoch milliseconds, matching the
// JSON the web client has always consumed.
type Listing struct {
	ID                 string `json:"id"`
	UserID             string `json:"userId"`
	Title              string `json:"title"`
	Company            string `json:"company"`
	Description        string `json:"description"`
	Location           string `json:"location"`
	Type               string `json:"type"`
	Category           string `json:"category"`
	SubCategory        string `json:"subCategory"`
	Salary             string `json:"salary,omitempty"`
	ContactEmail       string `json:"contactEmail,omitempty"`
	ContactPhone       string `json:"contactPhone,omitempty"`
	BusinessPhone      string `json:"businessPhone,omitempty"`
	EducationLevel     string `json:"educationLevel,omitempty"`
	ExperienceLevel    string `json:"experienceLevel,omitempty"`
	IsDisabledFriendly bool   `json:"isDisabledFriendly,omitempty"`
	CreatedAt          int64  `json:"createdAt"`
	UpdatedAt          int64  `json:"updatedAt,omitempty"`
	Status             Status `json:"status"`
	IsPremium          bool   `json:"isPremium,omitempty"`
	IsPromoted         bool   `json:"isPromoted,omitempty"`
	PromotionExpiresAt int64  `json:"promotionExpiresAt,omitempty"`
}

// LastModified is updatedAt when set, createdAt otherwise.
func (l *Listing) LastModified() int64 {
	if l.UpdatedAt > 0 {
		return l.UpdatedAt
	}
	return l.CreatedAt
}

// IsActive reports whether the listing is publicly visible.
func (l *Listing) IsActive() bool { return l.Status == StatusActive }

// PromotionActive applies lazy expiry: stale flags count as not promoted.
func (l *Listing) PromotionActive(now time.Time) bool {
	if !l.IsPremium && !l.IsPromoted {
		return false
	}
	return l.PromotionExpiresAt > now.UnixMilli()
}

// ExpiresAt is the end of the retention window.
func (l *Listing) ExpiresAt() int64 {
	return l.CreatedAt + RetentionDays*dayMillis
}

// DaysLeft is the client-visible countdown; never negative.
func (l *Listing) DaysLeft(now time.Time) int {
	left := l.ExpiresAt() - now.UnixMilli()
	if left <= 0 {
		return 0
	}
	return int((left + dayMillis - 1) / dayMillis)
}

// ApplyPromotion sets the flags bought by a completed order.
func (l *Listing) ApplyPromotion(kind PromotionType, days int, now time.Time) {
	l.IsPremium = kind == PromotionPremium || kind == PromotionTop
	l.IsPromoted = true
	l.PromotionExpiresAt = now.UnixMilli() + int64(days)*dayMillis
	l.UpdatedAt = now.UnixMilli()
}

// ClearPromotion drops promotion flags, used by the expiry sweep.
func (l *Listing) ClearPromotion(now time.Time) {
	l.IsPremium = false
	l.IsPromoted = false
	l.PromotionExpiresAt = 0
	l.UpdatedAt = now.UnixMilli()
}

// Criteria narrows the visible listing set. It lives in a browser session,
// never in the listing store.
type Criteria struct {
	SearchTerm      string `json:"searchTerm"`
	Category        string `json:"category"`
	SubCategory     string `json:"subCategory"`
	City            string `json:"city"`
	ExperienceLevel string `json:"experienceLevel"`
	SortBy          SortBy `json:"sortBy"`
}

// SortBy orders listings by createdAt.
type SortBy string

const (
	SortNewest SortBy = "newest"
	SortOldest SortBy = "oldest"
)

// Candidate is a posting extracted from an external job board, not yet stored.
type Candidate struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceUrl"`
}
