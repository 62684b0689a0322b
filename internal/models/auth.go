package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin   UserRole = "SUPERADMIN"
	RoleAdmin        UserRole = "ADMIN"
	RoleHRManager    UserRole = "HR_MANAGER"
	RoleStockManager UserRole = "STOCK_MANAGER"
	RoleAccountant   UserRole = "ACCOUNTANT"
	RoleStaff        UserRole = "STAFF"
	RoleService      UserRole = "SERVICE"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleHRManager, RoleStockManager, RoleAccountant, RoleStaff, RoleService:
		return true
	}
	return false
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}
