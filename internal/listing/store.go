// Package listing owns the job listings: the store adapter, the live feed of
// active listings and the create/update/delete lifecycle.
package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"isilanlarim/internal/model"
)

// Store is the narrow interface to the backing listing store.
type Store interface {
	All(ctx context.Context) ([]model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	ListByUser(ctx context.Context, userID string) ([]model.Listing, error)
	// Insert is a conditional write: ErrDuplicateTitle when the title is taken.
	Insert(ctx context.Context, l *model.Listing) error
	// Update replaces every mutable field; createdAt and userId never change.
	Update(ctx context.Context, l *model.Listing) error
	Delete(ctx context.Context, id string) error
	// ClearExpiredPromotions drops flags whose window ended before now (epoch ms).
	ClearExpiredPromotions(ctx context.Context, now int64) (int64, error)
}

const uniqueViolation = "23505"

const listingColumns = `id, user_id, title, company, description, location, type,
	category, sub_category, salary, contact_email, contact_phone, business_phone,
	education_level, experience_level, is_disabled_friendly, created_at, updated_at,
	status, is_premium, is_promoted, promotion_expires_at`

// PostgresStore implements Store over the jobs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanListing(row pgx.Row) (model.Listing, error) {
	var l model.Listing
	var status string
	err := row.Scan(
		&l.ID, &l.UserID, &l.Title, &l.Company, &l.Description, &l.Location, &l.Type,
		&l.Category, &l.SubCategory, &l.Salary, &l.ContactEmail, &l.ContactPhone, &l.BusinessPhone,
		&l.EducationLevel, &l.ExperienceLevel, &l.IsDisabledFriendly, &l.CreatedAt, &l.UpdatedAt,
		&status, &l.IsPremium, &l.IsPromoted, &l.PromotionExpiresAt,
	)
	l.Status = model.Status(status)
	return l, err
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// All returns every listing regardless of status.
func (s *PostgresStore) All(ctx context.Context) ([]model.Listing, error) {
	out, err := s.query(ctx, `SELECT `+listingColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("all listings: %w", err)
	}
	return out, nil
}

// Get returns one listing by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}

// ListByUser returns the user's listings, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	out, err := s.query(ctx,
		`SELECT `+listingColumns+` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listings by user: %w", err)
	}
	return out, nil
}

// Insert stores a new listing unless its title is already taken.
func (s *PostgresStore) Insert(ctx context.Context, l *model.Listing) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		 ON CONFLICT (title) DO NOTHING`,
		l.ID, l.UserID, l.Title, l.Company, l.Description, l.Location, l.Type,
		l.Category, l.SubCategory, l.Salary, l.ContactEmail, l.ContactPhone, l.BusinessPhone,
		l.EducationLevel, l.ExperienceLevel, l.IsDisabledFriendly, l.CreatedAt, l.UpdatedAt,
		string(l.Status), l.IsPremium, l.IsPromoted, l.PromotionExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateTitle
	}
	return nil
}

// Update writes the mutable fields of l.
func (s *PostgresStore) Update(ctx context.Context, l *model.Listing) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET
		   title = $2, company = $3, description = $4, location = $5, type = $6,
		   category = $7, sub_category = $8, salary = $9, contact_email = $10,
		   contact_phone = $11, business_phone = $12, education_level = $13,
		   experience_level = $14, is_disabled_friendly = $15, updated_at = $16,
		   status = $17, is_premium = $18, is_promoted = $19, promotion_expires_at = $20
		 WHERE id = $1`,
		l.ID, l.Title, l.Company, l.Description, l.Location, l.Type,
		l.Category, l.SubCategory, l.Salary, l.ContactEmail,
		l.ContactPhone, l.BusinessPhone, l.EducationLevel,
		l.ExperienceLevel, l.IsDisabledFriendly, l.UpdatedAt,
		string(l.Status), l.IsPremium, l.IsPromoted, l.PromotionExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateTitle
	}
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-removes a listing.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredPromotions resets promotion flags whose window has passed.
func (s *PostgresStore) ClearExpiredPromotions(ctx context.Context, now int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET is_premium = false, is_promoted = false, promotion_expires_at = 0, updated_at = $1
		 WHERE promotion_expires_at > 0 AND promotion_expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("clear expired promotions: %w", err)
	}
	return tag.RowsAffected(), nil
}
