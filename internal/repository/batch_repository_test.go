package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
)

var batchRowColumns = []string{"id", "name", "year", "department_id", "department_name", "created_at", "updated_at"}

func TestBatchRepositoryFindWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND b.department_id = ANY($1) AND b.year = ANY($2) AND EXISTS (SELECT 1 FROM batch_admins ba WHERE ba.batch_id = b.id AND ba.admin_id = $3) ORDER BY d.name ASC")).
		WithArgs(pq.Array([]string{"d1"}), pq.Array([]int{2022}), "a1").
		WillReturnRows(sqlmock.NewRows(batchRowColumns).
			AddRow("b1", "CSE-A", 2022, "d1", "Computer Science", now, now))

	batches, err := repo.Find(context.Background(), models.BatchFilter{DepartmentIDs: []string{"d1"}, Years: []int{2022}, AdminID: "a1"})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "Computer Science", batches[0].DepartmentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND LOWER(b.name) LIKE $1 ORDER BY b.year DESC, b.name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%cse%").
		WillReturnRows(sqlmock.NewRows(batchRowColumns).AddRow("b1", "CSE-A", 2022, "d1", "Computer Science", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM batches b WHERE 1=1 AND LOWER(b.name) LIKE $1")).
		WithArgs("%cse%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	batches, total, err := repo.List(context.Background(), models.BatchFilter{Search: "CSE", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, batches, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositorySetAdmins(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM batch_admins WHERE batch_id = $1")).WithArgs("b1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO batch_admins")).WithArgs("b1", "a1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO batch_admins")).WithArgs("b1", "a2").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetAdmins(context.Background(), "b1", []string{"a1", "a2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositorySetAdminsRollsBackOnUnknownAdmin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM batch_admins WHERE batch_id = $1")).WithArgs("b1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO batch_admins")).WithArgs("b1", "ghost").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "batch_admins_admin_id_fkey"})
	mock.ExpectRollback()

	err := repo.SetAdmins(context.Background(), "b1", []string{"ghost"})
	assert.ErrorIs(t, err, ErrReferenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryIsAssigned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM batch_admins WHERE batch_id = $1 AND admin_id = $2)")).
		WithArgs("b1", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsAssigned(context.Background(), "b1", "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
