//go:build integration

// Package containers provides testcontainers-based fixtures for integration tests.
package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wso2/consent-lifecycle-store/internal/database"
)

// consentTables lists every consent table, children first.
var consentTables = []string{
	"FS_CONSENT_HISTORY",
	"FS_CONSENT_STATUS_AUDIT",
	"FS_CONSENT_ATTRIBUTE",
	"FS_CONSENT_MAPPING",
	"FS_CONSENT_AUTH_RESOURCE",
	"FS_CONSENT",
}

// PostgresContainer wraps a testcontainers Postgres instance with the consent schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *database.DB
}

// NewPostgresContainer starts a new Postgres container and runs the embedded migrations.
func NewPostgresContainer(t testing.TB) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("consent_test"),
		postgres.WithUsername("consent"),
		postgres.WithPassword("consent_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	raw, err := sqlx.Open(database.DialectPostgres.DriverName(), dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	db := database.New(raw)
	if _, err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateAll clears every consent table. Use between tests to keep them isolated
// without restarting the container.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	for _, table := range consentTables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// Terminate closes the pool and stops the container.
func (p *PostgresContainer) Terminate(ctx context.Context) error {
	_ = p.DB.Close()
	return p.Container.Terminate(ctx)
}
