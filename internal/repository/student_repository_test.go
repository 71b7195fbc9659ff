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

var studentRowColumns = []string{"id", "reg_no", "name", "department_id", "batch_id", "email", "mobile", "active", "created_at", "updated_at"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("1", "21CS001", "Asha", "d1", "b1", "asha@example.com", "9000000000", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, reg_no, name, department_id, batch_id, email, mobile, active, created_at, updated_at FROM students WHERE 1=1 AND batch_id = $1 ORDER BY reg_no ASC LIMIT 20 OFFSET 0")).
		WithArgs("b1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND batch_id = $1")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{BatchID: "b1"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.NotNil(t, students[0].BatchID)
	assert.Equal(t, "b1", *students[0].BatchID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicateRegNo(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_reg_no_key"})

	err := repo.Create(context.Background(), &models.Student{RegNo: "21CS001", Name: "Asha", DepartmentID: "d1", Active: true})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByRegNo(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE reg_no = $1 AND id <> $2 LIMIT 1")).
		WithArgs("21CS001", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.ExistsByRegNo(context.Background(), "21CS001", "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE batch_id = ANY($1) AND active = TRUE ORDER BY reg_no ASC")).
		WithArgs(pq.Array([]string{"b1", "b2"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_id", "reg_no", "name", "department_id", "email", "mobile"}).
			AddRow("s1", "b1", "21CS001", "Asha", "d1", "", "").
			AddRow("s2", "b2", "21CS002", "Bala", "d1", "", ""))

	roster, err := repo.Roster(context.Background(), []string{"b1", "b2"})
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "b2", roster[1].BatchID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryRosterEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	roster, err := repo.Roster(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, roster)
	assert.NoError(t, mock.ExpectationsWereMet())
}
