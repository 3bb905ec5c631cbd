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

package database

import "github.com/jmoiron/sqlx"

// DBQuery represents a database query with an identifier and the SQL text.
// It supports multiple database types (MySQL, PostgreSQL, SQLite) with database-specific variants.
// Queries are written with '?' placeholders and rebound for the target dialect.
type DBQuery struct {
	// ID is the unique identifier for the query.
	ID string `json:"id"`
	// Query is the default query (MySQL syntax).
	Query string `json:"query"`
	// PostgresQuery is the PostgreSQL-specific query variant.
	PostgresQuery string `json:"postgres_query,omitempty"`
	// SQLiteQuery is the SQLite-specific query variant.
	SQLiteQuery string `json:"sqlite_query,omitempty"`
}

// GetQuery returns the appropriate query for the specified dialect.
// If a dialect-specific query is not available, it falls back to the default query.
func (d *DBQuery) GetQuery(dialect Dialect) string {
	switch dialect {
	case DialectPostgres:
		if d.PostgresQuery != "" {
			return d.PostgresQuery
		}
	case DialectSQLite:
		if d.SQLiteQuery != "" {
			return d.SQLiteQuery
		}
	}
	return d.Query
}

// For returns the query text for the executor's dialect with placeholders rebound.
func (d *DBQuery) For(exec Executor) string {
	return exec.Rebind(d.GetQuery(DialectOf(exec)))
}

// Rebind rewrites '?' placeholders for the dialect.
func Rebind(dialect Dialect, query string) string {
	return sqlx.Rebind(sqlx.BindType(dialect.DriverName()), query)
}
