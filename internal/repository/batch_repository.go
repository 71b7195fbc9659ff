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

const batchSelect = `SELECT b.id, b.name, b.year, b.department_id, d.name AS department_name, b.created_at, b.updated_at
        FROM batches b JOIN departments d ON d.id = b.department_id`

// BatchRepository persists batches and their admin assignments.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs a BatchRepository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func buildBatchConditions(filter models.BatchFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("b.id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.IDs))
	}
	if len(filter.DepartmentIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("b.department_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.DepartmentIDs))
	}
	if len(filter.Years) > 0 {
		conditions = append(conditions, fmt.Sprintf("b.year = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.Years))
	}
	if filter.AdminID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM batch_admins ba WHERE ba.batch_id = b.id AND ba.admin_id = $%d)", len(args)+1))
		args = append(args, filter.AdminID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(b.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of batches ordered by year then name.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	where, args := buildBatchConditions(filter)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY b.year DESC, b.name ASC LIMIT %d OFFSET %d", batchSelect, where, size, offset)
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM batches b"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// Find returns every batch matching the filter without paging.
func (r *BatchRepository) Find(ctx context.Context, filter models.BatchFilter) ([]models.Batch, error) {
	where, args := buildBatchConditions(filter)
	query := batchSelect + where + " ORDER BY d.name ASC, b.year DESC, b.name ASC"
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("find batches: %w", err)
	}
	return batches, nil
}

// FindByID returns a batch by id.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, batchSelect+" WHERE b.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return &batch, nil
}

// Create inserts a batch.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (id, name, year, department_id, created_at, updated_at)
        VALUES (:id, :name, :year, :department_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return wrapErr("create batch", err)
	}
	return nil
}

// Update modifies a batch.
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET name = :name, year = :year, department_id = :department_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return wrapErr("update batch", err)
	}
	return nil
}

// Delete removes a batch. Attendance records referencing it yield ErrReferenced.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id); err != nil {
		return wrapErr("delete batch", err)
	}
	return nil
}

// AdminIDs lists the admins assigned to a batch.
func (r *BatchRepository) AdminIDs(ctx context.Context, batchID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT admin_id FROM batch_admins WHERE batch_id = $1 ORDER BY admin_id`, batchID); err != nil {
		return nil, fmt.Errorf("list batch admins: %w", err)
	}
	return ids, nil
}

// SetAdmins replaces the admin assignments of a batch.
func (r *BatchRepository) SetAdmins(ctx context.Context, batchID string, adminIDs []string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set batch admins: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM batch_admins WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("clear batch admins: %w", err)
	}
	for _, adminID := range adminIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO batch_admins (batch_id, admin_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, batchID, adminID); err != nil {
			return wrapErr("assign batch admin", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set batch admins: %w", err)
	}
	return nil
}

// IsAssigned reports whether the admin manages the batch.
func (r *BatchRepository) IsAssigned(ctx context.Context, batchID, adminID string) (bool, error) {
	var assigned bool
	const query = `SELECT EXISTS(SELECT 1 FROM batch_admins WHERE batch_id = $1 AND admin_id = $2)`
	if err := r.db.GetContext(ctx, &assigned, query, batchID, adminID); err != nil {
		return false, fmt.Errorf("check batch assignment: %w", err)
	}
	return assigned, nil
}

// AssignedBatchIDs lists the batches an admin manages.
func (r *BatchRepository) AssignedBatchIDs(ctx context.Context, adminID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT batch_id FROM batch_admins WHERE admin_id = $1 ORDER BY batch_id`, adminID); err != nil {
		return nil, fmt.Errorf("list assigned batches: %w", err)
	}
	return ids, nil
}
