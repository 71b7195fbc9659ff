package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMigrateAppliesAllStatementsInOrder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	for _, m := range migrations {
		mock.ExpectExec(regexp.QuoteMeta(m.statement)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(migrations[0].statement)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(migrations[1].statement)).WillReturnError(errors.New("permission denied"))

	err := Migrate(context.Background(), db, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), migrations[1].name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
