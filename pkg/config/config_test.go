package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 180, cfg.Attendance.MaxRangeDays)
	assert.Equal(t, 5*time.Minute, cfg.Stats.CacheTTL)
	assert.Equal(t, 20, cfg.RateLimit.LoginPerMinute)
	assert.Equal(t, 75.0, cfg.Dashboard.LowAttendanceThreshold)
	assert.Equal(t, 20, cfg.Dashboard.LowAttendanceLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ATTENDANCE_MAX_RANGE_DAYS", "31")
	t.Setenv("STATS_CACHE_TTL", "90s")
	t.Setenv("ENABLE_STATS_CACHE", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 31, cfg.Attendance.MaxRangeDays)
	assert.Equal(t, 90*time.Second, cfg.Stats.CacheTTL)
	assert.True(t, cfg.Stats.CacheEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Hour, parseDuration("", time.Hour))
	assert.Equal(t, time.Hour, parseDuration("soon", time.Hour))
	assert.Equal(t, 2*time.Minute, parseDuration("2m", time.Hour))
}
