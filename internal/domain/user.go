package domain

import "time"

// Role enumerates the privilege tiers.
type Role string

const (
	RoleStudent    Role = "student"
	RoleDeptAdmin  Role = "deptAdmin"
	RoleSuperAdmin Role = "superAdmin"
)

// Roles lists every declared role.
func Roles() []Role {
	return []Role{RoleStudent, RoleDeptAdmin, RoleSuperAdmin}
}

// Valid reports whether r is a declared role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleDeptAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r is one of the admin tiers.
func (r Role) IsAdmin() bool {
	return r == RoleDeptAdmin || r == RoleSuperAdmin
}

// User is an account of any tier. DepartmentID is nil only for super-admins.
type User struct {
	ID               string
	Name             string
	Username         string
	Email            string
	PasswordHash     string
	Role             Role
	DepartmentID     *string
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Department returns the department id or "" when unset.
func (u *User) Department() string {
	if u == nil || u.DepartmentID == nil {
		return ""
	}
	return *u.DepartmentID
}

// Actor builds the authorization identity for this user.
func (u *User) Actor() *Actor {
	if u == nil {
		return nil
	}
	return &Actor{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		DepartmentID: u.Department(),
	}
}

// UserView is a user joined with its department name.
type UserView struct {
	User
	DepartmentName string
}
