package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

type stubStatsProvider struct {
	batches []models.BatchAttendanceStats
	query   StatsQuery
	err     error
}

func (s *stubStatsProvider) Stats(ctx context.Context, principal *models.Principal, q StatsQuery) ([]models.BatchAttendanceStats, error) {
	s.query = q
	return s.batches, s.err
}

type stubInbox struct {
	unread int
	err    error
}

func (s stubInbox) UnreadCount(ctx context.Context, principal *models.Principal) (*UnreadCount, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &UnreadCount{Unread: s.unread}, nil
}

func dashboardBatches() []models.BatchAttendanceStats {
	return []models.BatchAttendanceStats{
		{
			BatchID: "b1", BatchName: "CSE-A", DepartmentName: "Computer Science",
			Dates: []string{"2024-03-01", "2024-03-04"},
			Students: []models.AttendanceStat{
				{RegNo: "21CS001", Name: "Asha", TotalClasses: 4, Percentage: 50, PercentageLabel: "50.00%"},
				{RegNo: "21CS002", Name: "Bala", TotalClasses: 4, Percentage: 100, PercentageLabel: "100.00%"},
				{RegNo: "21CS003", Name: "Chitra", TotalClasses: 4, Percentage: 25, PercentageLabel: "25.00%"},
				{RegNo: "21CS004", Name: "New", TotalClasses: 0},
			},
		},
		{BatchID: "b2", BatchName: "ECE-A", DepartmentName: "Electronics"},
	}
}

func TestDashboardServiceSummary(t *testing.T) {
	stats := &stubStatsProvider{batches: dashboardBatches()}
	svc := NewDashboardService(stats, stubInbox{unread: 3}, zap.NewNop(), DashboardServiceConfig{})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC) }

	summary, err := svc.Summary(context.Background(), superAdmin, "")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01_2024-03-15", summary.Range)
	assert.Equal(t, StatsSortPercentage, stats.query.Sort)
	assert.Equal(t, 75.0, summary.Threshold)
	require.Len(t, summary.Batches, 2)
	assert.Equal(t, 4, summary.Batches[0].Students)
	assert.Equal(t, 2, summary.Batches[0].DaysRecorded)
	assert.Equal(t, 58.33, summary.Batches[0].Rate)
	assert.Zero(t, summary.Batches[1].Rate)
	assert.Equal(t, 58.33, summary.OverallRate)

	require.Len(t, summary.LowAttendance, 2)
	assert.Equal(t, "21CS003", summary.LowAttendance[0].RegNo)
	assert.Equal(t, "21CS001", summary.LowAttendance[1].RegNo)
	assert.Equal(t, 3, summary.UnreadCount)
}

func TestDashboardServiceOverallRateWeighsStudents(t *testing.T) {
	stats := &stubStatsProvider{batches: []models.BatchAttendanceStats{
		{
			BatchID: "a", BatchName: "CSE-A",
			Students: []models.AttendanceStat{
				{RegNo: "21CS001", TotalClasses: 2, Percentage: 100},
			},
		},
		{
			BatchID: "b", BatchName: "ECE-A",
			Students: []models.AttendanceStat{
				{RegNo: "21EC001", TotalClasses: 2, Percentage: 0},
				{RegNo: "21EC002", TotalClasses: 2, Percentage: 0},
				{RegNo: "21EC003", TotalClasses: 2, Percentage: 0},
			},
		},
	}}
	svc := NewDashboardService(stats, nil, zap.NewNop(), DashboardServiceConfig{})

	summary, err := svc.Summary(context.Background(), superAdmin, istdate.PresetAll)
	require.NoError(t, err)
	require.Len(t, summary.Batches, 2)
	assert.Equal(t, 100.0, summary.Batches[0].Rate)
	assert.Equal(t, 0.0, summary.Batches[1].Rate)
	assert.Equal(t, 25.0, summary.OverallRate)
}

func TestDashboardServiceLimitsLowAttendance(t *testing.T) {
	stats := &stubStatsProvider{batches: dashboardBatches()}
	svc := NewDashboardService(stats, nil, zap.NewNop(), DashboardServiceConfig{LowAttendanceLimit: 1})

	summary, err := svc.Summary(context.Background(), superAdmin, istdate.PresetAll)
	require.NoError(t, err)
	assert.True(t, stats.query.Range.All)
	require.Len(t, summary.LowAttendance, 1)
	assert.Equal(t, 25.0, summary.LowAttendance[0].Percentage)
}

func TestDashboardServiceIgnoresInboxFailure(t *testing.T) {
	stats := &stubStatsProvider{batches: dashboardBatches()}
	svc := NewDashboardService(stats, stubInbox{err: errors.New("db down")}, zap.NewNop(), DashboardServiceConfig{})

	summary, err := svc.Summary(context.Background(), superAdmin, istdate.PresetToday)
	require.NoError(t, err)
	assert.Zero(t, summary.UnreadCount)
}

func TestDashboardServicePropagatesStatsError(t *testing.T) {
	stats := &stubStatsProvider{err: errors.New("boom")}
	svc := NewDashboardService(stats, nil, zap.NewNop(), DashboardServiceConfig{})

	_, err := svc.Summary(context.Background(), superAdmin, "")
	assert.Error(t, err)
}
