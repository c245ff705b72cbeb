// Package catalog holds the static permission and role catalog: the closed
// sets of valid roles and permissions, their display grouping, and the
// default permission set granted to each role.
package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role identifies a named bundle of capabilities.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleConsultant Role = "consultant"
	RoleCustomer   Role = "customer"
)

// Roles lists all known roles in display order.
var Roles = []Role{RoleAdmin, RoleConsultant, RoleCustomer}

// Valid reports whether the role is part of the catalog.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleConsultant, RoleCustomer:
		return true
	}
	return false
}

// Permission identifies an atomic capability gating a platform feature.
type Permission string

const (
	PermChat            Permission = "chat"
	PermUpload          Permission = "upload"
	PermDashboard       Permission = "dashboard"
	PermVisualization   Permission = "visualization"
	PermUserManagement  Permission = "user_management"
	PermRolePermissions Permission = "role_permissions"
)

// Permissions lists all known permissions in display order.
var Permissions = []Permission{
	PermChat,
	PermUpload,
	PermDashboard,
	PermVisualization,
	PermUserManagement,
	PermRolePermissions,
}

// Valid reports whether the permission is part of the catalog.
func (p Permission) Valid() bool {
	switch p {
	case PermChat, PermUpload, PermDashboard, PermVisualization, PermUserManagement, PermRolePermissions:
		return true
	}
	return false
}

// Category is a display grouping for permissions. It has no behavioral effect.
type Category string

const (
	CategoryCommunication  Category = "communication"
	CategoryInsights       Category = "insights"
	CategoryAdministration Category = "administration"
)

// CategoryOrder fixes the display order of categories.
var CategoryOrder = []Category{CategoryCommunication, CategoryInsights, CategoryAdministration}

// CategoryPermissions maps each category to its permissions in display order.
var CategoryPermissions = map[Category][]Permission{
	CategoryCommunication:  {PermChat, PermUpload},
	CategoryInsights:       {PermDashboard, PermVisualization},
	CategoryAdministration: {PermUserManagement, PermRolePermissions},
}

var labels = map[Permission]string{
	PermChat:            "Chat",
	PermUpload:          "File Upload",
	PermDashboard:       "Dashboard",
	PermVisualization:   "Visualization",
	PermUserManagement:  "User Management",
	PermRolePermissions: "Role Permissions",
}

var titleCaser = cases.Title(language.English)

// Label returns the human-readable label for a permission. Permissions
// without a registered label fall back to a title-cased rendering of the tag.
func Label(p Permission) string {
	if label, ok := labels[p]; ok {
		return label
	}
	return titleCaser.String(strings.ReplaceAll(string(p), "_", " "))
}

// PermissionSet is the effective capability set carried by a principal.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

var defaultGrants = map[Role][]Permission{
	RoleAdmin:      {PermChat, PermUpload, PermDashboard, PermVisualization, PermUserManagement, PermRolePermissions},
	RoleConsultant: {PermChat, PermUpload, PermDashboard, PermVisualization},
	RoleCustomer:   {PermChat, PermUpload},
}

// DefaultPermissions returns the default permission set for a role. Unknown
// roles receive the customer defaults, the most restrictive grant.
func DefaultPermissions(r Role) PermissionSet {
	grants, ok := defaultGrants[r]
	if !ok {
		grants = defaultGrants[RoleCustomer]
	}
	return NewPermissionSet(grants...)
}

// Locked reports whether a grid cell may never be revoked. The admin role must
// always retain the permission that edits the grid itself, otherwise every
// administrator could be locked out at once.
func Locked(r Role, p Permission) bool {
	return r == RoleAdmin && p == PermRolePermissions
}
