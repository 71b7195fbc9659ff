package models

import "time"

// Batch is a cohort of students of one department admitted in the same year.
type Batch struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Year           int       `db:"year" json:"year"`
	DepartmentID   string    `db:"department_id" json:"department_id"`
	DepartmentName string    `db:"department_name" json:"department_name,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// RosterEntry is the read-side view of a student enrolled in a batch. It is
// derived from the students table on every read.
type RosterEntry struct {
	StudentID    string `db:"id" json:"student_id"`
	BatchID      string `db:"batch_id" json:"-"`
	RegNo        string `db:"reg_no" json:"reg_no"`
	Name         string `db:"name" json:"name"`
	DepartmentID string `db:"department_id" json:"department_id"`
	Email        string `db:"email" json:"email"`
	Mobile       string `db:"mobile" json:"mobile"`
}

// BatchDetail is a batch with its assigned admins and current roster.
type BatchDetail struct {
	Batch
	AdminIDs []string      `json:"admin_ids"`
	Roster   []RosterEntry `json:"roster"`
}

// BatchFilter resolves batches by department and year. Empty slices mean no restriction.
type BatchFilter struct {
	IDs           []string
	DepartmentIDs []string
	Years         []int
	AdminID       string
	Search        string
	Page          int
	PageSize      int
}
