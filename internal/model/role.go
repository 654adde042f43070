package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// AdminRole is the closed set of back-office roles.
type AdminRole string

const (
	RoleSuperAdmin   AdminRole = "SUPER_ADMIN"
	RoleFinanceTeam  AdminRole = "FINANCE_TEAM"
	RoleSupportStaff AdminRole = "SUPPORT_STAFF"
	RolePartnerAdmin AdminRole = "PARTNER_ADMIN"
)

// AuthorityPrefix is prepended to a role name to form its authority.
const AuthorityPrefix = "ROLE_"

// AllRoles lists every role in display order.
func AllRoles() []AdminRole {
	return []AdminRole{RoleSuperAdmin, RoleFinanceTeam, RoleSupportStaff, RolePartnerAdmin}
}

// Valid reports whether r is one of the known roles.
func (r AdminRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleFinanceTeam, RoleSupportStaff, RolePartnerAdmin:
		return true
	}
	return false
}

// Authority returns "ROLE_<role>".
func (r AdminRole) Authority() string {
	return AuthorityPrefix + string(r)
}

// DisplayName is the human label shown in the back office.
func (r AdminRole) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleFinanceTeam:
		return "Finance Team"
	case RoleSupportStaff:
		return "Support Staff"
	case RolePartnerAdmin:
		return "Partner Admin"
	}
	return string(r)
}

// ParseAdminRole accepts a role name with or without the ROLE_ prefix,
// case-insensitively.
func ParseAdminRole(s string) (AdminRole, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, AuthorityPrefix)
	r := AdminRole(name)
	if !r.Valid() {
		return "", fmt.Errorf("unknown admin role %q", s)
	}
	return r, nil
}

// HasAnyRole reports whether role satisfies at least one of required.
// An empty required set admits any valid role.
func HasAnyRole(role AdminRole, required ...AdminRole) bool {
	if !role.Valid() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (r AdminRole) Value() (driver.Value, error) {
	return string(r), nil
}

// Scan implements sql.Scanner.
func (r *AdminRole) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*r = AdminRole(v)
	case []byte:
		*r = AdminRole(v)
	case nil:
		*r = ""
	default:
		return fmt.Errorf("scan admin role: unsupported type %T", src)
	}
	return nil
}
