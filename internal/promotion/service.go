package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"isilanlarim/internal/listing"
	"isilanlarim/internal/logger"
	"isilanlarim/internal/metrics"
	"isilanlarim/internal/model"
)

// Listings is the part of the listing store promotions touch.
type Listings interface {
	Get(ctx context.Context, id string) (*model.Listing, error)
	Update(ctx context.Context, l *model.Listing) error
	ClearExpiredPromotions(ctx context.Context, now int64) (int64, error)
}

// Request is a user's choice of tier for one of their listings.
type Request struct {
	ListingID    string              `json:"jobId"`
	Type         model.PromotionType `json:"promotionType"`
	DurationDays int                 `json:"promotionDuration"`
}

// URLs are the pages the gateway sends the user back to.
type URLs struct {
	Return string
	Cancel string
}

// Service runs the promotion purchase flow.
type Service struct {
	orders   OrderStore
	listings Listings
	gateway  Gateway
	events   listing.Publisher
	urls     URLs
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewService wires a Service. events may be nil.
func NewService(orders OrderStore, listings Listings, gw Gateway, events listing.Publisher, urls URLs, m *metrics.Metrics) *Service {
	if events == nil {
		events = listing.NopPublisher{}
	}
	return &Service{
		orders:   orders,
		listings: listings,
		gateway:  gw,
		events:   events,
		urls:     urls,
		metrics:  m,
		log:      logger.For("promotion"),
		now:      time.Now,
	}
}

// SetClock replaces time.Now; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func newOrderID(now time.Time) string {
	return fmt.Sprintf("PROMO_%d_%s", now.UnixMilli(), strings.ToUpper(uuid.NewString()[:8]))
}

// Initiate opens a pending order for a listing the user owns and asks the
// gateway for a payment page.
func (s *Service) Initiate(ctx context.Context, userID string, req Request) (*model.Order, error) {
	amount, err := model.Price(req.Type, req.DurationDays)
	if err != nil {
		return nil, &listing.ValidationError{Msg: err.Error()}
	}

	l, err := s.listings.Get(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, listing.ErrForbidden
	}
	if !l.IsActive() {
		return nil, &listing.ValidationError{Msg: "only active listings can be promoted"}
	}

	now := s.now()
	o := &model.Order{
		ID:            uuid.NewString(),
		OrderID:       newOrderID(now),
		ListingID:     l.ID,
		UserID:        userID,
		PromotionType: req.Type,
		DurationDays:  req.DurationDays,
		Amount:        amount,
		Currency:      model.Currency,
		Status:        model.OrderPending,
		CreatedAt:     now.UnixMilli(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	s.metrics.OrderMoved(string(model.OrderPending))

	payURL, ref, err := s.gateway.Initiate(ctx, Charge{
		OrderID:     o.OrderID,
		PaymentID:   o.ID,
		ListingID:   o.ListingID,
		Amount:      amount,
		Currency:    model.Currency,
		Description: fmt.Sprintf("İlan öne çıkarma - %s", req.Type),
		ItemName:    fmt.Sprintf("İlan Öne Çıkarma - %d Gün", req.DurationDays),
		ReturnURL:   s.urls.Return,
		CancelURL:   s.urls.Cancel,
	})
	if err != nil {
		s.log.Error().Err(err).Str("paymentId", o.ID).Msg("payment initiation failed")
		if _, terr := s.orders.Transition(ctx, o.ID, model.OrderPending, model.OrderFailed, now.UnixMilli()); terr != nil {
			s.log.Error().Err(terr).Str("paymentId", o.ID).Msg("mark payment failed")
		} else {
			s.metrics.OrderMoved(string(model.OrderFailed))
		}
		if errors.Is(err, ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := s.orders.Attach(ctx, o.ID, payURL, ref); err != nil {
		return nil, err
	}
	o.PaymentURL, o.ProviderRef = payURL, ref
	s.log.Info().Str("paymentId", o.ID).Str("listingId", o.ListingID).
		Str("type", string(o.PromotionType)).Int("amount", o.Amount).Msg("payment initiated")
	return o, nil
}

func (s *Service) ownedOrder(ctx context.Context, userID, paymentID string) (*model.Order, error) {
	o, err := s.orders.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, listing.ErrForbidden
	}
	return o, nil
}

// Reconcile settles a pending order against the gateway. Terminal orders are
// returned unchanged. Completion applies the promotion to the listing.
func (s *Service) Reconcile(ctx context.Context, userID, paymentID string) (*model.Order, error) {
	o, err := s.ownedOrder(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() || o.ProviderRef == "" {
		return o, nil
	}

	state, err := s.gateway.Status(ctx, o.ProviderRef)
	if err != nil {
		return nil, err
	}

	var next model.OrderStatus
	switch state {
	case GatewayCompleted:
		next = model.OrderCompleted
	case GatewayFailed:
		next = model.OrderFailed
	case GatewayCancelled:
		next = model.OrderCancelled
	default:
		return o, nil
	}

	now := s.now()
	if next == model.OrderCompleted {
		if err := s.applyPromotion(ctx, o, now); err != nil {
			return nil, err
		}
	}
	return s.settle(ctx, o, next, now)
}

// Cancel records that the user abandoned the payment page.
func (s *Service) Cancel(ctx context.Context, userID, paymentID string) (*model.Order, error) {
	o, err := s.ownedOrder(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if o.Status == model.OrderCancelled {
		return o, nil
	}
	if !model.IsOrderTransitionAllowed(o.Status, model.OrderCancelled) {
		return nil, &listing.ValidationError{Msg: fmt.Sprintf("payment is already %s", o.Status)}
	}
	return s.settle(ctx, o, model.OrderCancelled, s.now())
}

func (s *Service) settle(ctx context.Context, o *model.Order, next model.OrderStatus, now time.Time) (*model.Order, error) {
	won, err := s.orders.Transition(ctx, o.ID, o.Status, next, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	if !won {
		// Someone else settled it first; report what they stored.
		return s.orders.Get(ctx, o.ID)
	}
	o.Status = next
	if next == model.OrderCompleted {
		o.CompletedAt = now.UnixMilli()
	}
	s.metrics.OrderMoved(string(next))
	s.log.Info().Str("paymentId", o.ID).Str("status", string(next)).Msg("payment settled")
	return o, nil
}

// applyPromotion sets the bought flags on the order's listing. A listing
// deleted after payment is logged as orphaned and does not block settling.
func (s *Service) applyPromotion(ctx context.Context, o *model.Order, now time.Time) error {
	l, err := s.listings.Get(ctx, o.ListingID)
	if err == nil {
		l.ApplyPromotion(o.PromotionType, o.DurationDays, now)
		err = s.listings.Update(ctx, l)
	}
	if errors.Is(err, listing.ErrNotFound) {
		s.log.Warn().Str("paymentId", o.ID).Str("listingId", o.ListingID).
			Int("amount", o.Amount).Msg("payment completed for deleted listing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply promotion: %w", err)
	}
	s.events.Publish(context.WithoutCancel(ctx), listing.OpPromoted, l.ID)
	return nil
}

// SweepExpired clears promotion flags whose window has passed. Reads already
// treat such flags as inactive; the sweep keeps stored data tidy.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.listings.ClearExpiredPromotions(ctx, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	s.metrics.PromotionsCleared(n)
	if n > 0 {
		s.events.Publish(context.WithoutCancel(ctx), listing.OpSwept, "")
		s.log.Info().Int64("cleared", n).Msg("expired promotions cleared")
	}
	return n, nil
}

// PriceList is the public price table.
type PriceList struct {
	Currency string                              `json:"currency"`
	Prices   map[model.PromotionType]map[int]int `json:"prices"`
}

// Prices returns the price table.
func Prices() PriceList {
	return PriceList{Currency: model.Currency, Prices: model.Prices}
}
