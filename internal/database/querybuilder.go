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

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// BuildPaginationQuery adds LIMIT and OFFSET clauses to a query.
func BuildPaginationQuery(baseQuery string, limit, offset int) string {
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", baseQuery, limit, offset)
}

func direction(ascending bool) string {
	if ascending {
		return "ASC"
	}
	return "DESC"
}

// unboundedLimit is the LIMIT used when only an OFFSET is requested.
func unboundedLimit(dialect Dialect) string {
	switch dialect {
	case DialectPostgres:
		return "ALL"
	case DialectSQLite:
		return "-1"
	default:
		return "18446744073709551615"
	}
}

// SelectBuilder composes SELECT statements with optional filters and pagination.
type SelectBuilder struct {
	distinct bool
	columns  []string
	from     string
	joins    []string
	where    []string
	args     []interface{}
	orderBy  []string
	limit    int
	offset   int
}

// Select starts a builder for the given columns.
func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: columns}
}

// Distinct makes the statement SELECT DISTINCT.
func (b *SelectBuilder) Distinct() *SelectBuilder {
	b.distinct = true
	return b
}

// From sets the driving table, including its alias.
func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.from = table
	return b
}

// Join appends a raw join clause.
func (b *SelectBuilder) Join(clause string) *SelectBuilder {
	b.joins = append(b.joins, clause)
	return b
}

// Where appends a condition; conditions are AND-ed.
func (b *SelectBuilder) Where(condition string, args ...interface{}) *SelectBuilder {
	b.where = append(b.where, condition)
	b.args = append(b.args, args...)
	return b
}

// WhereIn appends "column IN (...)". An empty value set adds nothing.
func (b *SelectBuilder) WhereIn(column string, values []string) *SelectBuilder {
	if len(values) == 0 {
		return b
	}
	return b.Where(column+" IN (?)", values)
}

// OrderBy appends an ordering term.
func (b *SelectBuilder) OrderBy(column string, ascending bool) *SelectBuilder {
	b.orderBy = append(b.orderBy, column+" "+direction(ascending))
	return b
}

// Paginate sets LIMIT/OFFSET. A non-positive limit means unbounded.
func (b *SelectBuilder) Paginate(limit, offset int) *SelectBuilder {
	b.limit = limit
	b.offset = offset
	return b
}

// Build renders the statement for the dialect, expanding IN lists and rebinding placeholders.
func (b *SelectBuilder) Build(dialect Dialect) (string, []interface{}, error) {
	if b.from == "" {
		return "", nil, fmt.Errorf("select builder: missing FROM clause")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}

	query := sb.String()
	switch {
	case b.limit > 0:
		query = BuildPaginationQuery(query, b.limit, max(b.offset, 0))
	case b.offset > 0:
		query = fmt.Sprintf("%s LIMIT %s OFFSET %d", query, unboundedLimit(dialect), b.offset)
	}

	query, args, err := sqlx.In(query, b.args...)
	if err != nil {
		return "", nil, fmt.Errorf("select builder: failed to expand arguments: %w", err)
	}

	return Rebind(dialect, query), args, nil
}
