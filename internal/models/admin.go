package models

import "time"

// AdminRole represents the available roles for the RBAC system.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "SUPERADMIN"
	RoleAdmin      AdminRole = "ADMIN"
	RoleGuest      AdminRole = "GUEST"
)

// Valid reports whether r is a known role.
func (r AdminRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleGuest:
		return true
	}
	return false
}

// Admin represents an account stored in the admins table. Guests are read-only admins.
type Admin struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         AdminRole  `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AdminFilter captures filtering criteria for listing admins.
type AdminFilter struct {
	Role      *AdminRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
