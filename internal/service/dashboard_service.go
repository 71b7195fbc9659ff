package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

type dashboardStatsProvider interface {
	Stats(ctx context.Context, principal *models.Principal, q StatsQuery) ([]models.BatchAttendanceStats, error)
}

type dashboardInbox interface {
	UnreadCount(ctx context.Context, principal *models.Principal) (*UnreadCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	LowAttendanceThreshold float64
	LowAttendanceLimit     int
}

// DashboardService composes the landing summary from cached statistics.
type DashboardService struct {
	stats  dashboardStatsProvider
	inbox  dashboardInbox
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(stats dashboardStatsProvider, inbox dashboardInbox, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.LowAttendanceThreshold <= 0 {
		cfg.LowAttendanceThreshold = 75
	}
	if cfg.LowAttendanceLimit <= 0 {
		cfg.LowAttendanceLimit = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{stats: stats, inbox: inbox, logger: logger, now: time.Now, cfg: cfg}
}

// Summary aggregates the batches visible to the principal over the preset
// range, defaulting to the current month.
func (s *DashboardService) Summary(ctx context.Context, principal *models.Principal, preset istdate.Preset) (*dto.DashboardResponse, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if preset == "" {
		preset = istdate.PresetThisMonth
	}
	rng := istdate.ResolvePreset(preset, s.now())
	batches, err := s.stats.Stats(ctx, principal, StatsQuery{Range: rng, Sort: StatsSortPercentage})
	if err != nil {
		return nil, err
	}

	summary := &dto.DashboardResponse{
		Range:         rng.String(),
		Threshold:     s.cfg.LowAttendanceThreshold,
		Batches:       make([]dto.BatchAttendanceSummary, 0, len(batches)),
		LowAttendance: []dto.LowAttendanceStudent{},
		GeneratedAt:   s.now().UTC(),
	}

	var overallSum float64
	var overallCounted int
	for _, batch := range batches {
		item := dto.BatchAttendanceSummary{
			BatchID:        batch.BatchID,
			BatchName:      batch.BatchName,
			DepartmentName: batch.DepartmentName,
			Students:       len(batch.Students),
			DaysRecorded:   len(batch.Dates),
		}
		var batchSum float64
		var counted int
		for _, student := range batch.Students {
			if student.TotalClasses == 0 {
				continue
			}
			batchSum += student.Percentage
			counted++
			if student.Percentage < s.cfg.LowAttendanceThreshold {
				summary.LowAttendance = append(summary.LowAttendance, dto.LowAttendanceStudent{
					BatchID:    batch.BatchID,
					BatchName:  batch.BatchName,
					RegNo:      student.RegNo,
					Name:       student.Name,
					Percentage: student.Percentage,
					Label:      student.PercentageLabel,
				})
			}
		}
		if counted > 0 {
			item.Rate = round2(batchSum / float64(counted))
			overallSum += batchSum
			overallCounted += counted
		}
		summary.Batches = append(summary.Batches, item)
	}
	// Averaged per student, so larger batches weigh more.
	if overallCounted > 0 {
		summary.OverallRate = round2(overallSum / float64(overallCounted))
	}

	sort.SliceStable(summary.LowAttendance, func(i, j int) bool {
		return summary.LowAttendance[i].Percentage < summary.LowAttendance[j].Percentage
	})
	if len(summary.LowAttendance) > s.cfg.LowAttendanceLimit {
		summary.LowAttendance = summary.LowAttendance[:s.cfg.LowAttendanceLimit]
	}

	if s.inbox != nil {
		unread, err := s.inbox.UnreadCount(ctx, principal)
		if err != nil {
			s.logger.Warn("dashboard unread count failed", zap.String("admin_id", principal.AdminID), zap.Error(err))
		} else {
			summary.UnreadCount = unread.Unread
		}
	}
	return summary, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
