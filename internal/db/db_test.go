package db_test

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isilanlarim/internal/db"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := db.NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := db.NewRedisClient(context.Background(), "not-a-url")
	assert.ErrorContains(t, err, "redis.ParseURL")
}

func TestNewPostgresPool_BadURL(t *testing.T) {
	_, err := db.NewPostgresPool(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	names := make(map[string]bool)
	for _, m := range db.Migrations {
		assert.False(t, names[m.Name], "duplicate migration name %s", m.Name)
		names[m.Name] = true
		assert.Contains(t, strings.ToUpper(m.SQL), "IF NOT EXISTS", "migration %s must be re-runnable", m.Name)
	}
}
