package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"isilanlarim/internal/logger"
	"isilanlarim/internal/metrics"
	"isilanlarim/internal/model"
	"isilanlarim/internal/slug"
)

// ─── Inputs ──────────────────────────────────────────────────────────────────

// Draft carries the user-editable fields of a new listing.
type Draft struct {
	Title              string `json:"title"`
	Company            string `json:"company"`
	Description        string `json:"description"`
	Location           string `json:"location"`
	Type               string `json:"type"`
	Category           string `json:"category"`
	SubCategory        string `json:"subCategory"`
	Salary             string `json:"salary"`
	ContactEmail       string `json:"contactEmail"`
	ContactPhone       string `json:"contactPhone"`
	BusinessPhone      string `json:"businessPhone"`
	EducationLevel     string `json:"educationLevel"`
	ExperienceLevel    string `json:"experienceLevel"`
	IsDisabledFriendly bool   `json:"isDisabledFriendly"`
}

// Patch carries the fields of an update; nil means "leave unchanged".
type Patch struct {
	Title              *string `json:"title"`
	Company            *string `json:"company"`
	Description        *string `json:"description"`
	Location           *string `json:"location"`
	Type               *string `json:"type"`
	Category           *string `json:"category"`
	SubCategory        *string `json:"subCategory"`
	Salary             *string `json:"salary"`
	ContactEmail       *string `json:"contactEmail"`
	ContactPhone       *string `json:"contactPhone"`
	BusinessPhone      *string `json:"businessPhone"`
	EducationLevel     *string `json:"educationLevel"`
	ExperienceLevel    *string `json:"experienceLevel"`
	IsDisabledFriendly *bool   `json:"isDisabledFriendly"`
	Status             *string `json:"status"`
}

func (d *Draft) trim() {
	for _, f := range []*string{
		&d.Title, &d.Company, &d.Description, &d.Location, &d.Type, &d.Category,
		&d.SubCategory, &d.Salary, &d.ContactEmail, &d.ContactPhone, &d.BusinessPhone,
		&d.EducationLevel, &d.ExperienceLevel,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func draftOf(l *model.Listing) Draft {
	return Draft{
		Title: l.Title, Company: l.Company, Description: l.Description,
		Location: l.Location, Type: l.Type, Category: l.Category, SubCategory: l.SubCategory,
		Salary: l.Salary, ContactEmail: l.ContactEmail, ContactPhone: l.ContactPhone,
		BusinessPhone: l.BusinessPhone, EducationLevel: l.EducationLevel,
		ExperienceLevel: l.ExperienceLevel, IsDisabledFriendly: l.IsDisabledFriendly,
	}
}

func (d *Draft) applyTo(l *model.Listing) {
	l.Title, l.Company, l.Description = d.Title, d.Company, d.Description
	l.Location, l.Type = d.Location, d.Type
	l.Category, l.SubCategory = d.Category, d.SubCategory
	l.Salary, l.ContactEmail, l.ContactPhone, l.BusinessPhone = d.Salary, d.ContactEmail, d.ContactPhone, d.BusinessPhone
	l.EducationLevel, l.ExperienceLevel = d.EducationLevel, d.ExperienceLevel
	l.IsDisabledFriendly = d.IsDisabledFriendly
}

func (p *Patch) merge(d *Draft) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&d.Title, p.Title)
	set(&d.Company, p.Company)
	set(&d.Description, p.Description)
	set(&d.Location, p.Location)
	set(&d.Type, p.Type)
	set(&d.Category, p.Category)
	set(&d.SubCategory, p.SubCategory)
	set(&d.Salary, p.Salary)
	set(&d.ContactEmail, p.ContactEmail)
	set(&d.ContactPhone, p.ContactPhone)
	set(&d.BusinessPhone, p.BusinessPhone)
	set(&d.EducationLevel, p.EducationLevel)
	set(&d.ExperienceLevel, p.ExperienceLevel)
	if p.IsDisabledFriendly != nil {
		d.IsDisabledFriendly = *p.IsDisabledFriendly
	}
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Notifier is told that the public listing set changed. Trigger must not
// block; failures stay inside the notifier.
type Notifier interface {
	Trigger(reason string)
}

// Service holds the create/update/delete lifecycle and the public reads.
// It has no dependency on net/http; the REST and gRPC layers share it.
type Service struct {
	store    Store
	events   Publisher
	notifier Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDs replaces the listing id generator.
func WithIDs(newID func() string) Option { return func(s *Service) { s.newID = newID } }

// NewID returns a fresh listing id: a uuid without hyphens.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewService wires a Service. events and notifier may be nil.
func NewService(store Store, events Publisher, notifier Notifier, m *metrics.Metrics, opts ...Option) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	s := &Service{
		store:    store,
		events:   events,
		notifier: notifier,
		metrics:  m,
		log:      logger.For("listing"),
		now:      time.Now,
		newID:    NewID,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// changed runs the post-mutation side effects. Neither can fail the mutation.
func (s *Service) changed(ctx context.Context, op Op, id string) {
	s.events.Publish(context.WithoutCancel(ctx), op, id)
	if s.notifier != nil {
		s.notifier.Trigger(fmt.Sprintf("listing %s %s", op, id))
	}
}

// Create validates d and stores it as a new active listing owned by userID.
func (s *Service) Create(ctx context.Context, userID string, d Draft) (*model.Listing, error) {
	d.trim()
	if err := validate(&d); err != nil {
		s.metrics.Mutation("create", err)
		return nil, err
	}

	l := &model.Listing{
		ID:        s.newID(),
		UserID:    userID,
		CreatedAt: s.now().UnixMilli(),
		Status:    model.StatusActive,
	}
	d.applyTo(l)

	if err := s.store.Insert(ctx, l); err != nil {
		s.metrics.Mutation("create", err)
		return nil, err
	}
	s.metrics.Mutation("create", nil)
	s.log.Info().Str("listingId", l.ID).Str("userId", userID).Str("category", l.Category).Msg("listing created")

	s.changed(ctx, OpCreated, l.ID)
	return l, nil
}

// Get returns an active listing. Inactive and expired ones are not found.
func (s *Service) Get(ctx context.Context, id string) (*model.Listing, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.IsActive() {
		return nil, ErrNotFound
	}
	return l, nil
}

// Mine returns every listing the user owns, in any status.
func (s *Service) Mine(ctx context.Context, userID string) ([]model.Listing, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) owned(ctx context.Context, userID, id string) (*model.Listing, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, ErrForbidden
	}
	return l, nil
}

// Update merges p into the caller's listing and stamps updatedAt.
func (s *Service) Update(ctx context.Context, userID, id string, p Patch) (*model.Listing, error) {
	l, err := s.owned(ctx, userID, id)
	if err != nil {
		s.metrics.Mutation("update", err)
		return nil, err
	}

	d := draftOf(l)
	p.merge(&d)
	d.trim()
	if err := validate(&d); err != nil {
		s.metrics.Mutation("update", err)
		return nil, err
	}

	if p.Status != nil && model.Status(*p.Status) != l.Status {
		next, err := model.ParseStatus(*p.Status)
		if err != nil {
			s.metrics.Mutation("update", err)
			return nil, &ValidationError{Msg: err.Error()}
		}
		if !model.IsTransitionAllowed(l.Status, next) {
			err := &ValidationError{Msg: fmt.Sprintf("transition %s → %s is not allowed", l.Status, next)}
			s.metrics.Mutation("update", err)
			return nil, err
		}
		l.Status = next
	}

	d.applyTo(l)
	l.UpdatedAt = s.now().UnixMilli()

	if err := s.store.Update(ctx, l); err != nil {
		s.metrics.Mutation("update", err)
		return nil, err
	}
	s.metrics.Mutation("update", nil)
	s.log.Info().Str("listingId", id).Str("status", string(l.Status)).Msg("listing updated")

	s.changed(ctx, OpUpdated, id)
	return l, nil
}

// Delete hard-removes the caller's listing.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		s.metrics.Mutation("delete", err)
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.metrics.Mutation("delete", err)
		return err
	}
	s.metrics.Mutation("delete", nil)
	s.log.Info().Str("listingId", id).Msg("listing deleted")

	s.changed(ctx, OpDeleted, id)
	return nil
}

// ResolveSlug maps the last path segment of /ilan/{slug}-{id} to an active
// listing. Segments without a recognisable id, or whose id no longer
// exists, fall back to matching the slug of each active listing's title.
func (s *Service) ResolveSlug(ctx context.Context, segment string, active []model.Listing) (*model.Listing, error) {
	base, id, ok := slug.SplitID(segment)
	if ok {
		l, err := s.Get(ctx, id)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	want := slug.Make(base)
	for i := range active {
		if active[i].IsActive() && slug.Make(active[i].Title) == want {
			l := active[i]
			return &l, nil
		}
	}
	return nil, ErrNotFound
}
