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
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

const attendanceRecordColumns = "id, batch_id, date, session, marked_by, created_at, updated_at"

// AttendanceRepository persists session attendance records and their per-student entries.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func buildAttendanceConditions(batchIDs []string, from, to *time.Time, session models.Session) (string, []interface{}) {
	where := []string{"1=1"}
	var args []interface{}
	if len(batchIDs) > 0 {
		where = append(where, fmt.Sprintf("batch_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(batchIDs))
	}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date < $%d", len(args)+1))
		args = append(args, *to)
	}
	if session != "" {
		where = append(where, fmt.Sprintf("session = $%d", len(args)+1))
		args = append(args, session)
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func labelRecords(records []models.AttendanceRecord) {
	for i := range records {
		records[i].Day = istdate.ToCalendarDateString(records[i].Date)
	}
}

// Upsert stores a session record. Marking the same batch, date and session
// again replaces the previous entries.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (err error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert attendance: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsert = `INSERT INTO attendance_records (id, batch_id, date, session, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (batch_id, date, session)
DO UPDATE SET marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	row := tx.QueryRowxContext(ctx, upsert, record.ID, record.BatchID, record.Date, record.Session, record.MarkedBy, record.CreatedAt, record.UpdatedAt)
	if err = row.Scan(&record.ID, &record.CreatedAt); err != nil {
		return wrapErr("upsert attendance record", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM attendance_entries WHERE record_id = $1`, record.ID); err != nil {
		return fmt.Errorf("clear attendance entries: %w", err)
	}

	const insertEntry = `INSERT INTO attendance_entries (record_id, position, student_id, reg_no, student_name, status, reason)
VALUES (:record_id, :position, :student_id, :reg_no, :student_name, :status, :reason)`
	for i := range record.Entries {
		record.Entries[i].RecordID = record.ID
		record.Entries[i].Position = i
		if _, err = tx.NamedExecContext(ctx, insertEntry, record.Entries[i]); err != nil {
			return wrapErr("insert attendance entry", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	record.Day = istdate.ToCalendarDateString(record.Date)
	return nil
}

// List returns a page of records without entries, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where, args := buildAttendanceConditions(filter.BatchIDs, filter.From, filter.To, filter.Session)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM attendance_records%s ORDER BY date DESC, session ASC LIMIT %d OFFSET %d", attendanceRecordColumns, where, size, offset)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance_records"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	labelRecords(records)
	return records, total, nil
}

// FindByID returns a record with its entries.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, "SELECT "+attendanceRecordColumns+" FROM attendance_records WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	entries, err := r.entries(ctx, []string{record.ID})
	if err != nil {
		return nil, err
	}
	record.Entries = entries[record.ID]
	record.Day = istdate.ToCalendarDateString(record.Date)
	return &record, nil
}

// Delete removes a record and its entries.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	return nil
}

// FindInRange loads every record of the batches whose date falls in [from, to),
// ordered by date then session, with entries in stored order. Nil bounds are open.
func (r *AttendanceRepository) FindInRange(ctx context.Context, batchIDs []string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}
	where, args := buildAttendanceConditions(batchIDs, from, to, "")
	query := "SELECT " + attendanceRecordColumns + " FROM attendance_records" + where + " ORDER BY date ASC, session ASC"

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("find attendance in range: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.ID
	}
	entries, err := r.entries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Entries = entries[records[i].ID]
	}
	labelRecords(records)
	return records, nil
}

// DateSpan returns the first and last recorded dates of the batches, nil when none exist.
func (r *AttendanceRepository) DateSpan(ctx context.Context, batchIDs []string) (*time.Time, *time.Time, error) {
	if len(batchIDs) == 0 {
		return nil, nil, nil
	}
	const query = "SELECT MIN(date), MAX(date) FROM attendance_records WHERE batch_id = ANY($1)"
	var first, last sql.NullTime
	if err := r.db.QueryRowxContext(ctx, query, pq.Array(batchIDs)).Scan(&first, &last); err != nil {
		return nil, nil, fmt.Errorf("attendance date span: %w", err)
	}
	if !first.Valid || !last.Valid {
		return nil, nil, nil
	}
	return &first.Time, &last.Time, nil
}

func (r *AttendanceRepository) entries(ctx context.Context, recordIDs []string) (map[string][]models.AttendanceEntry, error) {
	const query = `SELECT record_id, position, student_id, reg_no, student_name, status, reason
        FROM attendance_entries WHERE record_id = ANY($1) ORDER BY record_id, position`
	var rows []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(recordIDs)); err != nil {
		return nil, fmt.Errorf("load attendance entries: %w", err)
	}
	grouped := make(map[string][]models.AttendanceEntry, len(recordIDs))
	for _, row := range rows {
		grouped[row.RecordID] = append(grouped[row.RecordID], row)
	}
	return grouped, nil
}
