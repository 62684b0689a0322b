package migrate

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestLoadOrdersEmbeddedMigrations(t *testing.T) {
	migrations, err := Load()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Contains(t, migrations[0].UpSQL, "status_change_reasons")
	assert.Equal(t, 2, migrations[1].Version)
	assert.Contains(t, migrations[1].UpSQL, "last_fence")
}

func TestUpFromEmptyDatabase(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_version")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_version")).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_version")).WillReturnResult(sqlmock.NewResult(1, 1))
	for _, version := range []int{1, 2} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE schema_version SET version = $1")).WithArgs(version).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	version, err := Up(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpSkipsAppliedAndRollsBackOnFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_version")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_version")).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS employees").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	_, err := Up(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_domain_entities.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}
