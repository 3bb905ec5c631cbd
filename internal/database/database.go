/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package database provides database connection and transaction management.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
)

// Dialect identifies the SQL flavour spoken by the underlying engine.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectSQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// DialectOf derives the dialect from a connection or transaction driver name.
func DialectOf(b interface{ DriverName() string }) Dialect {
	switch b.DriverName() {
	case "pgx", "postgres":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return DialectMySQL
	}
}

// Executor is satisfied by both *DB and *Transaction. DAOs accept it so the
// caller decides the transaction boundary.
type Executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ Executor = (*DB)(nil)
	_ Executor = (*Transaction)(nil)
)

// DB holds the database connection.
type DB struct {
	*sqlx.DB
	dialect Dialect
}

// Initialize creates and initializes the database connection.
func Initialize(cfg *config.DatabaseConfig) (*DB, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Database"))
	dialect := Dialect(cfg.Type)

	logger.Info("Connecting to database...",
		log.String("type", cfg.Type),
		log.String("hostname", cfg.Hostname),
		log.Int("port", cfg.Port),
		log.String("database", cfg.Database))

	db, err := sqlx.Open(dialect.DriverName(), cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// one writer at a time; also keeps in-memory databases on a single connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to database")

	return New(db), nil
}

// New wraps an already opened connection pool.
func New(db *sqlx.DB) *DB {
	dialect := DialectOf(db)
	if dialect == DialectPostgres {
		// unquoted identifiers come back lower-cased from PostgreSQL
		db.Mapper = reflectx.NewMapperTagFunc("db", strings.ToLower, strings.ToLower)
	}
	return &DB{DB: db, dialect: dialect}
}

// Dialect returns the SQL flavour of the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.DB != nil {
		logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Database"))
		logger.Info("Closing database connection...")
		return db.DB.Close()
	}
	return nil
}

// HealthCheck checks if the database is healthy.
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Transaction wraps sqlx.Tx to provide transaction management.
type Transaction struct {
	*sqlx.Tx
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx(ctx context.Context) (*Transaction, error) {
	var opts *sql.TxOptions
	if db.dialect != DialectSQLite {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}

	tx, err := db.DB.BeginTxx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Database"))
	logger.Debug("Transaction started")

	return &Transaction{Tx: tx}, nil
}

// Commit commits the transaction.
func (tx *Transaction) Commit() error {
	if err := tx.Tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Database"))
	logger.Debug("Transaction committed")
	return nil
}

// Rollback rolls back the transaction.
func (tx *Transaction) Rollback() error {
	if err := tx.Tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Database"))
	logger.Debug("Transaction rolled back")
	return nil
}

// WithTransaction executes fn within a transaction.
// If fn returns an error the transaction is rolled back, otherwise it is committed.
// A failed rollback is reported together with the error that caused it.
func (db *DB) WithTransaction(ctx context.Context, fn func(*Transaction) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Database"))
			logger.Error("Failed to rollback transaction", log.Error(rbErr))
			return multierr.Append(err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// LogStats logs current database connection pool statistics.
func (db *DB) LogStats() {
	stats := db.Stats()
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Database"))
	logger.Debug("Database connection pool stats",
		log.Int("open_connections", stats.OpenConnections),
		log.Int("in_use", stats.InUse),
		log.Int("idle", stats.Idle),
		log.Any("wait_count", stats.WaitCount),
		log.Any("wait_duration", stats.WaitDuration),
		log.Any("max_idle_closed", stats.MaxIdleClosed),
		log.Any("max_lifetime_closed", stats.MaxLifetimeClosed))
}
