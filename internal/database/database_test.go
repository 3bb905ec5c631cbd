package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return New(sqlx.NewDb(raw, "sqlmock")), mock
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE FS_CONSENT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTransaction(context.Background(), func(tx *Transaction) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE FS_CONSENT SET CURRENT_STATUS = ?", "Revoked")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := db.WithTransaction(context.Background(), func(tx *Transaction) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_ReportsRollbackFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	boom := errors.New("boom")
	err := db.WithTransaction(context.Background(), func(tx *Transaction) error {
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(tx *Transaction) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectOf(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
	}{
		{"mysql", DialectMySQL},
		{"pgx", DialectPostgres},
		{"sqlite", DialectSQLite},
		{"sqlmock", DialectMySQL},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			assert.Equal(t, tt.want, DialectOf(driverNamer(tt.driver)))
		})
	}
}

type driverNamer string

func (d driverNamer) DriverName() string { return string(d) }

func TestDBQuery_GetQueryFallsBack(t *testing.T) {
	q := DBQuery{
		ID:          "lock-consent",
		Query:       "SELECT 1 FOR UPDATE",
		SQLiteQuery: "SELECT 1",
	}

	assert.Equal(t, "SELECT 1 FOR UPDATE", q.GetQuery(DialectMySQL))
	assert.Equal(t, "SELECT 1 FOR UPDATE", q.GetQuery(DialectPostgres))
	assert.Equal(t, "SELECT 1", q.GetQuery(DialectSQLite))
}

func TestSplitStatements(t *testing.T) {
	script := `-- header
CREATE TABLE A (
    ID INT
);

CREATE INDEX IDX_A ON A (ID);
`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE A")
	assert.NotContains(t, stmts[0], ";")
	assert.Equal(t, "CREATE INDEX IDX_A ON A (ID)", stmts[1])
}

func TestMigrate_AppliesPendingFilesOnce(t *testing.T) {
	db, mock := newMockDB(t)
	source := fstest.MapFS{
		"mysql/0001_init.sql":  {Data: []byte("CREATE TABLE A (ID INT);")},
		"mysql/0002_index.sql": {Data: []byte("CREATE INDEX IDX_A ON A (ID);")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS FS_SCHEMA_VERSION").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT VERSION FROM FS_SCHEMA_VERSION").
		WillReturnRows(sqlmock.NewRows([]string{"VERSION"}).AddRow("0001_init"))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX IDX_A ON A").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO FS_SCHEMA_VERSION").
		WithArgs("0002_index", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ran, err := migrate(context.Background(), db, source)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_index"}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}
