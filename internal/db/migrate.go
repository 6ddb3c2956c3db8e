package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Migration is one idempotent schema step.
type Migration struct {
	Name string
	SQL  string
}

// Migrations lists the schema steps in order. Every statement must be safe to
// re-run on each start-up.
var Migrations = []Migration{
	{
		Name: "create_jobs",
		SQL: `CREATE TABLE IF NOT EXISTS jobs (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT    NOT NULL,
			title                TEXT    NOT NULL,
			company              TEXT    NOT NULL,
			description          TEXT    NOT NULL,
			location             TEXT    NOT NULL,
			type                 TEXT    NOT NULL DEFAULT '',
			category             TEXT    NOT NULL DEFAULT '',
			sub_category         TEXT    NOT NULL DEFAULT '',
			salary               TEXT    NOT NULL DEFAULT '',
			contact_email        TEXT    NOT NULL DEFAULT '',
			contact_phone        TEXT    NOT NULL DEFAULT '',
			business_phone       TEXT    NOT NULL DEFAULT '',
			education_level      TEXT    NOT NULL DEFAULT '',
			experience_level     TEXT    NOT NULL DEFAULT '',
			is_disabled_friendly BOOLEAN NOT NULL DEFAULT false,
			created_at           BIGINT  NOT NULL,
			updated_at           BIGINT  NOT NULL DEFAULT 0,
			status               TEXT    NOT NULL DEFAULT 'active'
			                     CHECK (status IN ('active', 'inactive', 'expired')),
			is_premium           BOOLEAN NOT NULL DEFAULT false,
			is_promoted          BOOLEAN NOT NULL DEFAULT false,
			promotion_expires_at BIGINT  NOT NULL DEFAULT 0
		)`,
	},
	{
		// Conditional insert target: duplicate titles are rejected by the store.
		Name: "jobs_title_unique",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS jobs_title_key ON jobs (title)`,
	},
	{
		Name: "jobs_user_idx",
		SQL:  `CREATE INDEX IF NOT EXISTS jobs_user_id_idx ON jobs (user_id)`,
	},
	{
		Name: "create_payments",
		SQL: `CREATE TABLE IF NOT EXISTS payments (
			id             TEXT PRIMARY KEY,
			order_id       TEXT    NOT NULL UNIQUE,
			job_id         TEXT    NOT NULL,
			user_id        TEXT    NOT NULL,
			promotion_type TEXT    NOT NULL,
			duration_days  INT     NOT NULL,
			amount         INT     NOT NULL,
			currency       TEXT    NOT NULL DEFAULT 'TRY',
			status         TEXT    NOT NULL DEFAULT 'pending'
			               CHECK (status IN ('pending', 'completed', 'failed', 'cancelled')),
			payment_url    TEXT    NOT NULL DEFAULT '',
			provider_ref   TEXT    NOT NULL DEFAULT '',
			created_at     BIGINT  NOT NULL,
			completed_at   BIGINT  NOT NULL DEFAULT 0
		)`,
	},
}

// Migrate applies every migration in order and stops at the first failure.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range Migrations {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		log.Debug().Str("migration", m.Name).Msg("applied")
	}
	log.Info().Int("count", len(Migrations)).Msg("schema up to date")
	return nil
}
