package models

import (
	"fmt"
	"strings"
	"time"
)

// Session identifies the forenoon or afternoon class of a day.
type Session string

const (
	SessionFN Session = "FN"
	SessionAN Session = "AN"
)

// ParseSession accepts FN/AN in any case as well as the long forms.
func ParseSession(raw string) (Session, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "FN", "FORENOON":
		return SessionFN, nil
	case "AN", "AFTERNOON":
		return SessionAN, nil
	}
	return "", fmt.Errorf("unknown session %q", raw)
}

// AttendanceStatus is the canonical status of one student in one session.
type AttendanceStatus string

const (
	StatusPresent   AttendanceStatus = "Present"
	StatusAbsent    AttendanceStatus = "Absent"
	StatusOnDuty    AttendanceStatus = "On-Duty"
	StatusLate      AttendanceStatus = "Late"
	StatusSickLeave AttendanceStatus = "Sick-Leave"
)

// AttendanceStatuses lists the canonical statuses in display order.
var AttendanceStatuses = []AttendanceStatus{StatusPresent, StatusAbsent, StatusOnDuty, StatusLate, StatusSickLeave}

// statusSynonyms is keyed by the lower-cased spelling with spaces and
// underscores folded to hyphens.
var statusSynonyms = map[string]AttendanceStatus{
	"present":    StatusPresent,
	"absent":     StatusAbsent,
	"on-duty":    StatusOnDuty,
	"onduty":     StatusOnDuty,
	"od":         StatusOnDuty,
	"late":       StatusLate,
	"sick-leave": StatusSickLeave,
	"sickleave":  StatusSickLeave,
	"sl":         StatusSickLeave,
}

var statusSeparators = strings.NewReplacer("_", "-", " ", "-")

// NormalizeAttendanceStatus maps any accepted spelling to its canonical status.
func NormalizeAttendanceStatus(raw string) (AttendanceStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = statusSeparators.Replace(key)
	for strings.Contains(key, "--") {
		key = strings.ReplaceAll(key, "--", "-")
	}
	status, ok := statusSynonyms[key]
	return status, ok
}

// ParseAttendanceStatus is the strict ingestion parser.
func ParseAttendanceStatus(raw string) (AttendanceStatus, error) {
	status, ok := NormalizeAttendanceStatus(raw)
	if !ok {
		return "", fmt.Errorf("unknown attendance status %q", raw)
	}
	return status, nil
}

// AttendanceRecord holds one session of one batch on one IST calendar day.
type AttendanceRecord struct {
	ID        string            `db:"id" json:"id"`
	BatchID   string            `db:"batch_id" json:"batch_id"`
	Date      time.Time         `db:"date" json:"-"`
	Day       string            `db:"-" json:"date"`
	Session   Session           `db:"session" json:"session"`
	MarkedBy  *string           `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
	Entries   []AttendanceEntry `db:"-" json:"entries"`
}

// AttendanceEntry is the status of one student inside a record. Status is
// stored as written and normalised on read.
type AttendanceEntry struct {
	RecordID    string  `db:"record_id" json:"-"`
	Position    int     `db:"position" json:"-"`
	StudentID   *string `db:"student_id" json:"student_id,omitempty"`
	RegNo       string  `db:"reg_no" json:"reg_no"`
	StudentName string  `db:"student_name" json:"student_name"`
	Status      string  `db:"status" json:"status"`
	Reason      string  `db:"reason" json:"reason,omitempty"`
}

// AttendanceFilter selects records of a set of batches within [From, To).
type AttendanceFilter struct {
	BatchIDs []string
	From     *time.Time
	To       *time.Time
	Session  Session
	Page     int
	PageSize int
}
