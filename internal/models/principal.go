package models

// Principal is the capability set of the caller, derived once from verified
// token claims and handed to services instead of raw role headers.
type Principal struct {
	AdminID      string
	Role         AdminRole
	Email        string
	DepartmentID string
}

// PrincipalFromClaims builds a principal from validated claims.
func PrincipalFromClaims(claims *JWTClaims) *Principal {
	if claims == nil {
		return nil
	}
	return &Principal{
		AdminID:      claims.AdminID,
		Role:         claims.Role,
		Email:        claims.Email,
		DepartmentID: claims.DepartmentID,
	}
}

// IsSuperAdmin reports unrestricted access.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

// CanWrite reports whether the principal may mutate students and attendance.
func (p *Principal) CanWrite() bool {
	return p != nil && (p.Role == RoleSuperAdmin || p.Role == RoleAdmin)
}

// BatchScoped reports whether reads and writes are limited to assigned batches.
func (p *Principal) BatchScoped() bool {
	return p != nil && p.Role == RoleAdmin
}
