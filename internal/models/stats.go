package models

// AttendanceStat is the per-student aggregate over a date range. It is never persisted.
type AttendanceStat struct {
	StudentID       string  `json:"student_id,omitempty"`
	RegNo           string  `json:"reg_no"`
	Name            string  `json:"name"`
	TotalClasses    int     `json:"total_classes"`
	Present         int     `json:"present"`
	Absent          int     `json:"absent"`
	OnDuty          int     `json:"on_duty"`
	Late            int     `json:"late"`
	SickLeave       int     `json:"sick_leave"`
	Unrecognized    int     `json:"unrecognized,omitempty"`
	Percentage      float64 `json:"percentage"`
	PercentageLabel string  `json:"percentage_label"`
}

// SessionStatuses is the raw status recorded in each session of one day.
type SessionStatuses struct {
	FN string `json:"fn,omitempty"`
	AN string `json:"an,omitempty"`
}

// BatchAttendanceStats is the aggregate of one batch. Dates lists the IST
// calendar days that have at least one record for this batch.
type BatchAttendanceStats struct {
	BatchID        string           `json:"batch_id"`
	BatchName      string           `json:"batch_name"`
	Year           int              `json:"year"`
	DepartmentID   string           `json:"department_id"`
	DepartmentName string           `json:"department_name"`
	Dates          []string         `json:"dates"`
	Students       []AttendanceStat `json:"students"`

	// Sessions is keyed by registration number then calendar date.
	Sessions map[string]map[string]SessionStatuses `json:"-"`
}
