package models

import "time"

// Department groups batches and students.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentFilter captures listing options.
type DepartmentFilter struct {
	Search   string
	Page     int
	PageSize int
}
