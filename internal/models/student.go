package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID           string    `db:"id" json:"id"`
	RegNo        string    `db:"reg_no" json:"reg_no"`
	Name         string    `db:"name" json:"name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	BatchID      *string   `db:"batch_id" json:"batch_id,omitempty"`
	Email        string    `db:"email" json:"email"`
	Mobile       string    `db:"mobile" json:"mobile"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search       string
	BatchID      string
	BatchIDs     []string
	DepartmentID string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
