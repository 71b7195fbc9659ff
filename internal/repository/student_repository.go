package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-api/internal/models"
)

const studentColumns = "id, reg_no, name, department_id, batch_id, email, mobile, active, created_at, updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if len(filter.BatchIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("batch_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.BatchIDs))
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(reg_no) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base := "FROM students WHERE " + strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "name",
		"reg_no":     "reg_no",
		"created_at": "created_at",
	}
	if sortBy == "" {
		sortBy = "reg_no"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "reg_no"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ExistsByRegNo checks if a student with given registration number exists optionally excluding an ID.
func (r *StudentRepository) ExistsByRegNo(ctx context.Context, regNo string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE reg_no = $1"
	args := []interface{}{regNo}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check reg no: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, reg_no, name, department_id, batch_id, email, mobile, active, created_at, updated_at)
        VALUES (:id, :reg_no, :name, :department_id, :batch_id, :email, :mobile, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return wrapErr("create student", err)
	}
	return nil
}

// Update modifies an existing student. Moving a student to another batch
// only changes batch_id; rosters are derived from it on read.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET reg_no = :reg_no, name = :name, department_id = :department_id, batch_id = :batch_id, email = :email, mobile = :mobile, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return wrapErr("update student", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// Roster returns the active students of the given batches ordered by registration number.
func (r *StudentRepository) Roster(ctx context.Context, batchIDs []string) ([]models.RosterEntry, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, batch_id, reg_no, name, department_id, email, mobile
        FROM students WHERE batch_id = ANY($1) AND active = TRUE ORDER BY reg_no ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, pq.Array(batchIDs)); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return roster, nil
}
