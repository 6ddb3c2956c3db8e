package promotion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"isilanlarim/internal/model"
)

// ErrOrderNotFound is returned for unknown payment ids.
var ErrOrderNotFound = errors.New("payment not found")

// OrderStore persists promotion orders.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, id string) (*model.Order, error)
	// Attach records the gateway's payment URL and reference.
	Attach(ctx context.Context, id, paymentURL, providerRef string) error
	// Transition moves the order from → to. It reports false when the order
	// was no longer in from, so concurrent reconciles settle exactly once.
	Transition(ctx context.Context, id string, from, to model.OrderStatus, at int64) (bool, error)
}

const orderColumns = `id, order_id, job_id, user_id, promotion_type, duration_days,
	amount, currency, status, payment_url, provider_ref, created_at, completed_at`

// PostgresOrders implements OrderStore over the payments table.
type PostgresOrders struct {
	pool *pgxpool.Pool
}

// NewPostgresOrders returns an OrderStore backed by pool.
func NewPostgresOrders(pool *pgxpool.Pool) *PostgresOrders {
	return &PostgresOrders{pool: pool}
}

func (s *PostgresOrders) Create(ctx context.Context, o *model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payments (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.OrderID, o.ListingID, o.UserID, string(o.PromotionType), o.DurationDays,
		o.Amount, o.Currency, string(o.Status), o.PaymentURL, o.ProviderRef, o.CreatedAt, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (s *PostgresOrders) Get(ctx context.Context, id string) (*model.Order, error) {
	var (
		o            model.Order
		kind, status string
	)
	err := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM payments WHERE id = $1`, id).Scan(
		&o.ID, &o.OrderID, &o.ListingID, &o.UserID, &kind, &o.DurationDays,
		&o.Amount, &o.Currency, &status, &o.PaymentURL, &o.ProviderRef, &o.CreatedAt, &o.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	o.PromotionType = model.PromotionType(kind)
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func (s *PostgresOrders) Attach(ctx context.Context, id, paymentURL, providerRef string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE payments SET payment_url = $2, provider_ref = $3 WHERE id = $1`,
		id, paymentURL, providerRef)
	if err != nil {
		return fmt.Errorf("attach payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrders) Transition(ctx context.Context, id string, from, to model.OrderStatus, at int64) (bool, error) {
	completedAt := int64(0)
	if to == model.OrderCompleted {
		completedAt = at
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE payments SET status = $3, completed_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), completedAt)
	if err != nil {
		return false, fmt.Errorf("payment %s → %s: %w", from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}
