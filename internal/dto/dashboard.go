package dto

import "time"

// DashboardResponse captures the landing page payload of an admin.
type DashboardResponse struct {
	Range         string                   `json:"range"`
	Threshold     float64                  `json:"threshold"`
	OverallRate   float64                  `json:"overallRate"`
	Batches       []BatchAttendanceSummary `json:"batches"`
	LowAttendance []LowAttendanceStudent   `json:"lowAttendance"`
	UnreadCount   int                      `json:"unreadCount"`
	GeneratedAt   time.Time                `json:"generatedAt"`
}

// BatchAttendanceSummary denotes the attendance rate of one batch.
type BatchAttendanceSummary struct {
	BatchID        string  `json:"batchId"`
	BatchName      string  `json:"batchName"`
	DepartmentName string  `json:"departmentName"`
	Students       int     `json:"students"`
	DaysRecorded   int     `json:"daysRecorded"`
	Rate           float64 `json:"rate"`
}

// LowAttendanceStudent flags a student below the attendance threshold.
type LowAttendanceStudent struct {
	BatchID    string  `json:"batchId"`
	BatchName  string  `json:"batchName"`
	RegNo      string  `json:"regNo"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Label      string  `json:"label"`
}
