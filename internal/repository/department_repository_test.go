package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
)

func TestDepartmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, created_at, updated_at FROM departments WHERE 1=1 AND (LOWER(code) LIKE $1 OR LOWER(name) LIKE $1) ORDER BY code ASC LIMIT 20 OFFSET 0")).
		WithArgs("%cse%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "created_at", "updated_at"}).AddRow("d1", "CSE", "Computer Science", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM departments WHERE 1=1 AND (LOWER(code) LIKE $1 OR LOWER(name) LIKE $1)")).
		WithArgs("%cse%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	departments, total, err := repo.List(context.Background(), models.DepartmentFilter{Search: "CSE"})
	require.NoError(t, err)
	require.Len(t, departments, 1)
	assert.Equal(t, "CSE", departments[0].Code)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectExec("INSERT INTO departments").
		WithArgs(sqlmock.AnyArg(), "ECE", "Electronics", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	department := &models.Department{Code: "ECE", Name: "Electronics"}
	require.NoError(t, repo.Create(context.Background(), department))
	assert.NotEmpty(t, department.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryDeleteInUse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM departments WHERE id = $1")).
		WithArgs("d1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "batches_department_id_fkey"})

	err := repo.Delete(context.Background(), "d1")
	assert.ErrorIs(t, err, ErrReferenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}
