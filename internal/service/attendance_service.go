package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	Delete(ctx context.Context, id string) error
}

// MarkAttendanceEntry is the status of one student in a marking request.
type MarkAttendanceEntry struct {
	RegNo  string `json:"reg_no" validate:"required"`
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// MarkAttendanceRequest marks one session of one batch on one IST calendar day.
type MarkAttendanceRequest struct {
	BatchID string                `json:"batch_id" validate:"required"`
	Date    string                `json:"date" validate:"required"`
	Session string                `json:"session" validate:"required"`
	Entries []MarkAttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceListRequest filters stored records.
type AttendanceListRequest struct {
	BatchIDs  []string
	StartDate string
	EndDate   string
	Session   string
	Page      int
	PageSize  int
}

// AttendanceService records session attendance. Aggregation lives in AttendanceStatsService.
type AttendanceService struct {
	repo      attendanceRepository
	batches   studentBatchRepository
	roster    statsRosterRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, batches studentBatchRepository, roster statsRosterRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		batches:   batches,
		roster:    roster,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Mark stores the session, replacing any earlier marking of the same batch,
// date and session. Every entry must name an active student of the batch.
func (s *AttendanceService) Mark(ctx context.Context, principal *models.Principal, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	date, err := istdate.ParseCalendarDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, "date must be YYYY-MM-DD")
	}
	if date.After(istdate.StartOfDay(s.now())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance cannot be marked for a future date")
	}
	session, err := models.ParseSession(req.Session)
	if err != nil {
		return nil, validationError(err, "session must be FN or AN")
	}
	if err := authorizeBatchWrite(ctx, s.batches, principal, req.BatchID, s.logger); err != nil {
		return nil, err
	}
	if _, err := s.batches.FindByID(ctx, req.BatchID); err != nil {
		return nil, translateStoreError(err, "batch", "load batch")
	}

	roster, err := s.roster.Roster(ctx, []string{req.BatchID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch roster")
	}
	students := make(map[string]models.RosterEntry, len(roster))
	for _, r := range roster {
		students[strings.ToUpper(r.RegNo)] = r
	}

	entries := make([]models.AttendanceEntry, 0, len(req.Entries))
	seen := make(map[string]struct{}, len(req.Entries))
	for _, item := range req.Entries {
		key := strings.ToUpper(strings.TrimSpace(item.RegNo))
		student, ok := students[key]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in this batch", item.RegNo))
		}
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is listed more than once", item.RegNo))
		}
		seen[key] = struct{}{}

		status, err := models.ParseAttendanceStatus(item.Status)
		if err != nil {
			return nil, validationError(err, fmt.Sprintf("invalid status for %s", student.RegNo))
		}
		reason := strings.TrimSpace(item.Reason)
		if status == models.StatusOnDuty && reason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reason is required for On-Duty (%s)", student.RegNo))
		}
		studentID := student.StudentID
		entries = append(entries, models.AttendanceEntry{
			StudentID:   &studentID,
			RegNo:       student.RegNo,
			StudentName: student.Name,
			Status:      string(status),
			Reason:      reason,
		})
	}

	markedBy := principal.AdminID
	record := &models.AttendanceRecord{
		BatchID:  req.BatchID,
		Date:     date,
		Session:  session,
		MarkedBy: &markedBy,
		Entries:  entries,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, translateStoreError(err, "attendance record", "save attendance")
	}
	s.metrics.RecordAttendanceMarked(string(session))
	s.cache.InvalidateStats(ctx)
	s.logger.Info("attendance marked",
		zap.String("batch_id", record.BatchID),
		zap.String("date", record.Day),
		zap.String("session", string(session)),
		zap.Int("entries", len(entries)),
	)
	return record, nil
}

// List returns records without entries, newest first. ADMIN principals only
// see their assigned batches.
func (s *AttendanceService) List(ctx context.Context, principal *models.Principal, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, nil, err
	}
	filter := models.AttendanceFilter{BatchIDs: req.BatchIDs, Page: req.Page, PageSize: req.PageSize}
	if req.Session != "" {
		session, err := models.ParseSession(req.Session)
		if err != nil {
			return nil, nil, validationError(err, "session must be FN or AN")
		}
		filter.Session = session
	}
	if req.StartDate != "" {
		from, err := istdate.ParseCalendarDate(req.StartDate)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, "startDate must be YYYY-MM-DD")
		}
		filter.From = &from
	}
	if req.EndDate != "" {
		to, err := istdate.ParseCalendarDate(req.EndDate)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, "endDate must be YYYY-MM-DD")
		}
		next := istdate.NextCalendarDay(to)
		filter.To = &next
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidRange, "startDate must not be after endDate")
	}

	if principal.BatchScoped() {
		assigned, err := s.batches.AssignedBatchIDs(ctx, principal.AdminID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned batches")
		}
		filter.BatchIDs = intersectIDs(filter.BatchIDs, assigned)
		if len(filter.BatchIDs) == 0 {
			return []models.AttendanceRecord{}, paginate(req.Page, req.PageSize, 0), nil
		}
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, paginate(req.Page, req.PageSize, total), nil
}

// Get returns a record with its entries.
func (s *AttendanceService) Get(ctx context.Context, principal *models.Principal, id string) (*models.AttendanceRecord, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "attendance record", "load attendance")
	}
	if err := authorizeBatchRead(ctx, s.batches, principal, record.BatchID, s.logger); err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes a record and its entries.
func (s *AttendanceService) Delete(ctx context.Context, principal *models.Principal, id string) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return translateStoreError(err, "attendance record", "load attendance")
	}
	if err := authorizeBatchWrite(ctx, s.batches, principal, record.BatchID, s.logger); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	s.cache.InvalidateStats(ctx)
	return nil
}

// intersectIDs keeps requested ids that are allowed. An empty request means all allowed ids.
func intersectIDs(requested, allowed []string) []string {
	if len(requested) == 0 {
		return allowed
	}
	permitted := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		permitted[id] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := permitted[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
