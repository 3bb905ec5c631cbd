package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConstraintClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		duplicate  bool
		foreignKey bool
	}{
		{"nil", nil, false, false},
		{"plain", errors.New("boom"), false, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true, false},
		{"mysql missing parent", &mysql.MySQLError{Number: 1452}, false, true},
		{"mysql referenced row", &mysql.MySQLError{Number: 1451}, false, true},
		{"mysql other", &mysql.MySQLError{Number: 1205}, false, false},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true, false},
		{"postgres foreign key", &pgconn.PgError{Code: "23503"}, false, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.duplicate, IsDuplicateKeyError(tt.err))
			assert.Equal(t, tt.foreignKey, IsForeignKeyError(tt.err))
		})
	}
}
