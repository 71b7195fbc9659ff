package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAttendanceStatusSynonyms(t *testing.T) {
	cases := map[string]AttendanceStatus{
		"Present":     StatusPresent,
		" PRESENT ":   StatusPresent,
		"absent":      StatusAbsent,
		"On-Duty":     StatusOnDuty,
		"ON_DUTY":     StatusOnDuty,
		"ON DUTY":     StatusOnDuty,
		"onduty":      StatusOnDuty,
		"OD":          StatusOnDuty,
		"late":        StatusLate,
		"Sick-Leave":  StatusSickLeave,
		"sick_leave":  StatusSickLeave,
		"Sick  Leave": StatusSickLeave,
		"SL":          StatusSickLeave,
	}
	for raw, want := range cases {
		got, ok := NormalizeAttendanceStatus(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNormalizeAttendanceStatusUnknown(t *testing.T) {
	for _, raw := range []string{"", "excused", "present!", "half-day"} {
		_, ok := NormalizeAttendanceStatus(raw)
		assert.False(t, ok, raw)
	}
	_, err := ParseAttendanceStatus("holiday")
	assert.Error(t, err)
}

func TestParseSession(t *testing.T) {
	s, err := ParseSession("fn")
	require.NoError(t, err)
	assert.Equal(t, SessionFN, s)

	s, err = ParseSession("Afternoon")
	require.NoError(t, err)
	assert.Equal(t, SessionAN, s)

	_, err = ParseSession("evening")
	assert.Error(t, err)
}

func TestPrincipalCapabilities(t *testing.T) {
	super := PrincipalFromClaims(&JWTClaims{AdminID: "a1", Role: RoleSuperAdmin})
	admin := PrincipalFromClaims(&JWTClaims{AdminID: "a2", Role: RoleAdmin})
	guest := PrincipalFromClaims(&JWTClaims{AdminID: "g1", Role: RoleGuest})

	assert.True(t, super.IsSuperAdmin())
	assert.True(t, super.CanWrite())
	assert.False(t, super.BatchScoped())

	assert.True(t, admin.CanWrite())
	assert.True(t, admin.BatchScoped())

	assert.False(t, guest.CanWrite())
	assert.False(t, guest.BatchScoped())

	assert.Nil(t, PrincipalFromClaims(nil))
}
