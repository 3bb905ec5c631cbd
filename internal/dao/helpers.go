package dao

import (
	"context"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/wso2/consent-lifecycle-store/internal/database"
)

// execAffected runs a write statement and reports how many rows it touched
func execAffected(ctx context.Context, exec database.Executor, query string, args ...interface{}) (int64, error) {
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// inQuery expands slice arguments into IN lists and rebinds for the executor's driver
func inQuery(exec database.Executor, query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return exec.Rebind(query), args, nil
}

// multiRowInsert renders "INSERT ... VALUES (..), (..)" for rows rows of width columns.
// A single statement keeps a batch all-or-nothing without relying on the caller's transaction.
func multiRowInsert(prefix string, width, rows int) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = tuple
	}
	return prefix + " VALUES " + strings.Join(tuples, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
