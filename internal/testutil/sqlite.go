// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-lifecycle-store/internal/database"
)

// NewSQLiteDB opens a private in-memory SQLite database with the consent schema applied.
// The database is closed when the test ends.
func NewSQLiteDB(t testing.TB) *database.DB {
	t.Helper()

	raw, err := sqlx.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	db := database.New(raw)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.Migrate(context.Background(), db)
	require.NoError(t, err)
	return db
}
