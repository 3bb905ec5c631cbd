package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/system/log"
	"github.com/wso2/consent-lifecycle-store/migrations"
)

const createSchemaVersionTable = `CREATE TABLE IF NOT EXISTS FS_SCHEMA_VERSION (
    VERSION      VARCHAR(128) NOT NULL PRIMARY KEY,
    APPLIED_TIME BIGINT       NOT NULL
)`

// Migrate applies every embedded migration for the connection's dialect that
// has not yet been recorded in FS_SCHEMA_VERSION. Files are applied in name order.
func Migrate(ctx context.Context, db *DB) ([]string, error) {
	return migrate(ctx, db, migrations.FS)
}

func migrate(ctx context.Context, db *DB, source fs.FS) ([]string, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Migrate"))

	if _, err := db.ExecContext(ctx, createSchemaVersionTable); err != nil {
		return nil, fmt.Errorf("failed to create schema version table: %w", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, "SELECT VERSION FROM FS_SCHEMA_VERSION"); err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	dir := string(db.Dialect())
	files, err := fs.Glob(source, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	var ran []string
	for _, file := range files {
		version := strings.TrimSuffix(path.Base(file), ".sql")
		if _, ok := done[version]; ok {
			continue
		}

		content, err := fs.ReadFile(source, file)
		if err != nil {
			return ran, fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		// MySQL commits DDL implicitly, so there a failed file may be partially applied.
		err = db.WithTransaction(ctx, func(tx *Transaction) error {
			for _, stmt := range SplitStatements(string(content)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("statement failed: %w", err)
				}
			}
			_, err := tx.ExecContext(ctx,
				tx.Rebind("INSERT INTO FS_SCHEMA_VERSION (VERSION, APPLIED_TIME) VALUES (?, ?)"),
				version, time.Now().Unix())
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("failed to apply migration %s: %w", version, err)
		}

		logger.Info("Applied migration", log.String("version", version))
		ran = append(ran, version)
	}

	return ran, nil
}

// SplitStatements splits a SQL script on statement-terminating semicolons.
// Full-line "--" comments are dropped.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		current strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			stmts = append(stmts, stmt)
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}
