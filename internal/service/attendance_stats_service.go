package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

// Sort orders accepted by the aggregator. Empty keeps roster order.
const (
	StatsSortRegNo      = "regNo"
	StatsSortName       = "name"
	StatsSortPercentage = "percentage"
)

type statsBatchRepository interface {
	Find(ctx context.Context, filter models.BatchFilter) ([]models.Batch, error)
}

type statsRosterRepository interface {
	Roster(ctx context.Context, batchIDs []string) ([]models.RosterEntry, error)
}

type statsRecordRepository interface {
	FindInRange(ctx context.Context, batchIDs []string, from, to *time.Time) ([]models.AttendanceRecord, error)
	DateSpan(ctx context.Context, batchIDs []string) (first, last *time.Time, err error)
}

// StatsQuery selects the batches and date range to aggregate. Explicit
// BatchIDs take precedence over the department and year filters.
type StatsQuery struct {
	BatchIDs      []string
	DepartmentIDs []string
	Years         []int
	Range         istdate.Range
	Sort          string
}

// AttendanceStatsConfig holds aggregator limits.
type AttendanceStatsConfig struct {
	MaxRangeDays int
	CacheTTL     time.Duration
}

// AttendanceStatsService aggregates attendance records into per-student statistics.
type AttendanceStatsService struct {
	batches  statsBatchRepository
	students statsRosterRepository
	records  statsRecordRepository
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	config   AttendanceStatsConfig
}

// NewAttendanceStatsService constructs the aggregator.
func NewAttendanceStatsService(batches statsBatchRepository, students statsRosterRepository, records statsRecordRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config AttendanceStatsConfig) *AttendanceStatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRangeDays <= 0 {
		config.MaxRangeDays = 180
	}
	return &AttendanceStatsService{
		batches:  batches,
		students: students,
		records:  records,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

// Stats returns the aggregate of every batch visible to the principal. Results are cached when enabled.
func (s *AttendanceStatsService) Stats(ctx context.Context, principal *models.Principal, q StatsQuery) ([]models.BatchAttendanceStats, error) {
	q, batches, err := s.prepare(ctx, principal, q)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return []models.BatchAttendanceStats{}, nil
	}

	key := statsCacheKey(batches, q)
	var cached []models.BatchAttendanceStats
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	result, err := s.aggregate(ctx, batches, q)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, result, s.config.CacheTTL)
	return result, nil
}

// Aggregate computes the statistics without the cache and keeps the per-session
// statuses needed to render workbooks. An all-dates query is bounded by the span
// between the first and last recorded dates.
func (s *AttendanceStatsService) Aggregate(ctx context.Context, principal *models.Principal, q StatsQuery) ([]models.BatchAttendanceStats, error) {
	q, batches, err := s.prepare(ctx, principal, q)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return []models.BatchAttendanceStats{}, nil
	}
	if q.Range.All {
		if err := s.validateRecordedSpan(ctx, batches); err != nil {
			return nil, err
		}
	}
	return s.aggregate(ctx, batches, q)
}

// ResolveBatches returns the batches a query selects for the principal.
func (s *AttendanceStatsService) ResolveBatches(ctx context.Context, principal *models.Principal, q StatsQuery) ([]models.Batch, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	filter := models.BatchFilter{IDs: q.BatchIDs}
	if len(q.BatchIDs) == 0 {
		filter.DepartmentIDs = q.DepartmentIDs
		filter.Years = q.Years
	}
	if principal.BatchScoped() {
		filter.AdminID = principal.AdminID
	}
	batches, err := s.batches.Find(ctx, filter)
	if err != nil {
		s.logger.Error("failed to resolve batches", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve batches")
	}
	return batches, nil
}

func (s *AttendanceStatsService) prepare(ctx context.Context, principal *models.Principal, q StatsQuery) (StatsQuery, []models.Batch, error) {
	if err := requirePrincipal(principal); err != nil {
		return q, nil, err
	}
	if !q.Range.All && q.Range.Start.IsZero() && q.Range.End.IsZero() {
		q.Range = istdate.ResolvePresetNow(istdate.PresetToday)
	}
	if err := s.validateRange(q.Range); err != nil {
		return q, nil, err
	}
	switch q.Sort {
	case "", StatsSortRegNo, StatsSortName, StatsSortPercentage:
	default:
		return q, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported sort %q", q.Sort))
	}
	batches, err := s.ResolveBatches(ctx, principal, q)
	if err != nil {
		return q, nil, err
	}
	return q, batches, nil
}

func (s *AttendanceStatsService) validateRange(r istdate.Range) error {
	if r.All {
		return nil
	}
	if r.Start.After(r.End) {
		return appErrors.Clone(appErrors.ErrInvalidRange, "start date must not be after end date")
	}
	if days := r.Days(); days > s.config.MaxRangeDays {
		return appErrors.Clone(appErrors.ErrInvalidRange, fmt.Sprintf("date range spans %d days, maximum is %d", days, s.config.MaxRangeDays))
	}
	return nil
}

func (s *AttendanceStatsService) validateRecordedSpan(ctx context.Context, batches []models.Batch) error {
	ids := make([]string, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	first, last, err := s.records.DateSpan(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load attendance date span", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if first == nil || last == nil {
		return nil
	}
	if days := istdate.DaysBetween(*first, *last) + 1; days > s.config.MaxRangeDays {
		return appErrors.Clone(appErrors.ErrInvalidRange, fmt.Sprintf("recorded attendance spans %d days, maximum is %d; pass startDate and endDate", days, s.config.MaxRangeDays))
	}
	return nil
}

func (s *AttendanceStatsService) aggregate(ctx context.Context, batches []models.Batch, q StatsQuery) ([]models.BatchAttendanceStats, error) {
	ids := make([]string, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}

	roster, err := s.students.Roster(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load roster", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	var from, to *time.Time
	if !q.Range.All {
		start, end := q.Range.Bounds()
		from, to = &start, &end
	}
	started := time.Now()
	records, err := s.records.FindInRange(ctx, ids, from, to)
	s.metrics.ObserveDBQuery("attendance_in_range", time.Since(started))
	if err != nil {
		s.logger.Error("failed to load attendance records", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	rosterByBatch := make(map[string][]models.RosterEntry, len(batches))
	for _, entry := range roster {
		rosterByBatch[entry.BatchID] = append(rosterByBatch[entry.BatchID], entry)
	}
	recordsByBatch := make(map[string][]models.AttendanceRecord, len(batches))
	for _, record := range records {
		recordsByBatch[record.BatchID] = append(recordsByBatch[record.BatchID], record)
	}

	result := make([]models.BatchAttendanceStats, 0, len(batches))
	for _, batch := range batches {
		stats, unrecognized := aggregateBatch(batch, rosterByBatch[batch.ID], recordsByBatch[batch.ID])
		if unrecognized > 0 {
			s.logger.Warn("unrecognized attendance statuses counted",
				zap.String("batch_id", batch.ID),
				zap.String("range", q.Range.String()),
				zap.Int("count", unrecognized))
			s.metrics.RecordUnrecognizedStatuses(unrecognized)
		}
		sortStats(stats.Students, q.Sort)
		result = append(result, stats)
	}
	return result, nil
}

// aggregateBatch buckets the entries of one batch. Roster students come first
// in roster order, then students only seen in entries in order of first appearance.
func aggregateBatch(batch models.Batch, roster []models.RosterEntry, records []models.AttendanceRecord) (models.BatchAttendanceStats, int) {
	out := models.BatchAttendanceStats{
		BatchID:        batch.ID,
		BatchName:      batch.Name,
		Year:           batch.Year,
		DepartmentID:   batch.DepartmentID,
		DepartmentName: batch.DepartmentName,
		Dates:          []string{},
		Sessions:       map[string]map[string]models.SessionStatuses{},
	}

	index := make(map[string]int, len(roster))
	students := make([]models.AttendanceStat, 0, len(roster))
	for _, entry := range roster {
		if _, seen := index[entry.RegNo]; seen {
			continue
		}
		index[entry.RegNo] = len(students)
		students = append(students, models.AttendanceStat{StudentID: entry.StudentID, RegNo: entry.RegNo, Name: entry.Name})
	}

	unrecognized := 0
	for _, record := range records {
		if n := len(out.Dates); n == 0 || out.Dates[n-1] != record.Day {
			out.Dates = append(out.Dates, record.Day)
		}
		for _, entry := range record.Entries {
			i, ok := index[entry.RegNo]
			if !ok {
				i = len(students)
				index[entry.RegNo] = i
				stat := models.AttendanceStat{RegNo: entry.RegNo, Name: entry.StudentName}
				if entry.StudentID != nil {
					stat.StudentID = *entry.StudentID
				}
				students = append(students, stat)
			}
			stat := &students[i]
			stat.TotalClasses++

			cell := entry.Status
			status, known := models.NormalizeAttendanceStatus(entry.Status)
			if known {
				cell = string(status)
			}
			switch status {
			case models.StatusPresent:
				stat.Present++
			case models.StatusAbsent:
				stat.Absent++
			case models.StatusOnDuty:
				stat.OnDuty++
			case models.StatusLate:
				stat.Late++
			case models.StatusSickLeave:
				stat.SickLeave++
			default:
				stat.Unrecognized++
				unrecognized++
			}

			days := out.Sessions[entry.RegNo]
			if days == nil {
				days = map[string]models.SessionStatuses{}
				out.Sessions[entry.RegNo] = days
			}
			cells := days[record.Day]
			if record.Session == models.SessionAN {
				cells.AN = cell
			} else {
				cells.FN = cell
			}
			days[record.Day] = cells
		}
	}

	for i := range students {
		students[i].Percentage = AttendancePercentage(students[i])
		students[i].PercentageLabel = FormatPercentage(students[i].Percentage)
	}
	out.Students = students
	return out, unrecognized
}

// AttendancePercentage is (present + onDuty + late) / (total - sickLeave) * 100,
// zero when the denominator is not positive, clamped to [0, 100] and rounded to 2 decimals.
func AttendancePercentage(stat models.AttendanceStat) float64 {
	denominator := stat.TotalClasses - stat.SickLeave
	if denominator <= 0 {
		return 0
	}
	pct := float64(stat.Present+stat.OnDuty+stat.Late) / float64(denominator) * 100
	pct = math.Max(0, math.Min(100, pct))
	return math.Round(pct*100) / 100
}

// FormatPercentage renders a percentage such as "66.67%".
func FormatPercentage(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

func sortStats(students []models.AttendanceStat, order string) {
	switch order {
	case StatsSortRegNo:
		sort.SliceStable(students, func(i, j int) bool { return students[i].RegNo < students[j].RegNo })
	case StatsSortName:
		sort.SliceStable(students, func(i, j int) bool {
			a, b := strings.ToLower(students[i].Name), strings.ToLower(students[j].Name)
			if a == b {
				return students[i].RegNo < students[j].RegNo
			}
			return a < b
		})
	case StatsSortPercentage:
		sort.SliceStable(students, func(i, j int) bool {
			if students[i].Percentage == students[j].Percentage {
				return students[i].RegNo < students[j].RegNo
			}
			return students[i].Percentage > students[j].Percentage
		})
	}
}

func statsCacheKey(batches []models.Batch, q StatsQuery) string {
	ids := make([]string, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	sort.Strings(ids)
	sum := sha1.Sum([]byte(strings.Join(ids, ",")))
	return cacheKey(cacheScopeStats, hex.EncodeToString(sum[:8]), q.Range.String(), q.Sort)
}
