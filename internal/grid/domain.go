package grid

import (
	"errors"

	"github.com/meridian-consulting/meridian-auth/internal/catalog"
)

// ErrLockoutViolation rejects a batch that would revoke the grid-editing
// permission from the admin role.
var ErrLockoutViolation = errors.New("grid: update would lock administrators out")

// Cell is one persisted grid entry.
type Cell struct {
	Role       catalog.Role
	Permission catalog.Permission
	Allowed    bool
}

// Update is one requested cell change.
type Update struct {
	Role       catalog.Role
	Permission catalog.Permission
	Allowed    bool
}

// Document is the full grid plus its display metadata, as served to editors.
type Document struct {
	Roles      []catalog.Role
	Categories map[string][]string
	Labels     map[string]string
	Grid       map[catalog.Role]map[catalog.Permission]bool
}
