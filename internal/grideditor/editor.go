// Package grideditor stages and persists edits to the role-permission grid.
// Edits accumulate locally as pending changes and are submitted as one batch;
// the server is the unit of atomicity, so a failed save leaves both the
// staging area and the committed baseline untouched.
package grideditor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/meridian-consulting/meridian-auth/internal/apiclient"
	"github.com/meridian-consulting/meridian-auth/internal/catalog"
)

// GridAPI is the remote grid store.
type GridAPI interface {
	FetchGrid(ctx context.Context) (*apiclient.GridDocument, error)
	SaveGrid(ctx context.Context, updates []apiclient.GridUpdate) error
}

// cellKey addresses one grid cell. A composite key type rather than a joined
// string, so role/permission tags can never collide.
type cellKey struct {
	Role       catalog.Role
	Permission catalog.Permission
}

// PendingChange is one staged, not-yet-persisted cell edit.
type PendingChange struct {
	Role       catalog.Role
	Permission catalog.Permission
	Allowed    bool
}

// Document is the display metadata of the last loaded grid.
type Document struct {
	Roles      []catalog.Role
	Categories map[string][]string
	Labels     map[string]string
}

// Editor holds the committed grid baseline plus the local staging area.
type Editor struct {
	api    GridAPI
	logger *slog.Logger

	mu        sync.Mutex
	doc       Document
	committed map[cellKey]bool
	pending   map[cellKey]PendingChange
	loaded    bool
}

// New constructs an Editor. Call Load before reading values.
func New(api GridAPI, logger *slog.Logger) *Editor {
	return &Editor{
		api:       api,
		logger:    logger,
		committed: make(map[cellKey]bool),
		pending:   make(map[cellKey]PendingChange),
	}
}

// Load fetches the persisted grid and stores it as the committed baseline.
// On failure the previous baseline and staging area are kept: a stale grid is
// preferred over a blank one, and the caller may retry.
func (e *Editor) Load(ctx context.Context) error {
	doc, err := e.api.FetchGrid(ctx)
	if err != nil {
		return fmt.Errorf("grideditor: load: %w", err)
	}

	committed := make(map[cellKey]bool, len(doc.Grid)*len(catalog.Permissions))
	for role, perms := range doc.Grid {
		for perm, allowed := range perms {
			committed[cellKey{Role: catalog.Role(role), Permission: catalog.Permission(perm)}] = allowed
		}
	}
	// The server enforces this too, but a tampered or out-of-date payload
	// must never present the lockout cell as revocable.
	committed[cellKey{Role: catalog.RoleAdmin, Permission: catalog.PermRolePermissions}] = true

	roles := make([]catalog.Role, 0, len(doc.Roles))
	for _, r := range doc.Roles {
		roles = append(roles, catalog.Role(r))
	}

	e.mu.Lock()
	e.doc = Document{Roles: roles, Categories: doc.Categories, Labels: doc.Labels}
	e.committed = committed
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// Loaded reports whether a baseline has been loaded.
func (e *Editor) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Document returns the display metadata from the last successful Load.
func (e *Editor) Document() Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// CurrentValue returns the staged value for the cell if one exists, else the
// committed value.
func (e *Editor) CurrentValue(role catalog.Role, perm catalog.Permission) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := cellKey{Role: role, Permission: perm}
	if change, ok := e.pending[key]; ok {
		return change.Allowed
	}
	return e.committed[key]
}

// Stage records a cell edit in the staging area, overwriting any earlier edit
// for the same cell. Revoking a locked cell is silently ignored so the UI
// never shows an uncommitted-change marker for it.
func (e *Editor) Stage(role catalog.Role, perm catalog.Permission, allowed bool) {
	if catalog.Locked(role, perm) && !allowed {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	key := cellKey{Role: role, Permission: perm}
	if e.committed[key] == allowed {
		// Toggling back to the committed value cancels the staged edit.
		delete(e.pending, key)
		return
	}
	e.pending[key] = PendingChange{Role: role, Permission: perm, Allowed: allowed}
}

// PendingCount returns the number of staged edits.
func (e *Editor) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Discard clears the staging area without contacting the store.
func (e *Editor) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = make(map[cellKey]PendingChange)
}

// Save submits all staged edits as one batch. An empty staging area makes no
// network request. On success the committed baseline absorbs the submitted
// tuples and those entries leave the staging area; on failure everything is
// left untouched for a retry.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return nil
	}
	batch := make([]PendingChange, 0, len(e.pending))
	for _, change := range e.pending {
		batch = append(batch, change)
	}
	e.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Role != batch[j].Role {
			return batch[i].Role < batch[j].Role
		}
		return batch[i].Permission < batch[j].Permission
	})
	updates := make([]apiclient.GridUpdate, len(batch))
	for i, change := range batch {
		updates[i] = apiclient.GridUpdate{
			Role:       string(change.Role),
			Permission: string(change.Permission),
			Allowed:    change.Allowed,
		}
	}

	if err := e.api.SaveGrid(ctx, updates); err != nil {
		return fmt.Errorf("grideditor: save: %w", err)
	}

	e.mu.Lock()
	for _, change := range batch {
		key := cellKey{Role: change.Role, Permission: change.Permission}
		e.committed[key] = change.Allowed
		// Edits staged while the save was in flight stay pending.
		if current, ok := e.pending[key]; ok && current.Allowed == change.Allowed {
			delete(e.pending, key)
		}
	}
	e.mu.Unlock()
	if e.logger != nil {
		e.logger.Info("permission grid saved", slog.Int("updates", len(updates)))
	}
	return nil
}

// IsLocked reports whether the cell's control should be disabled. Kept in
// lock-step with the rule Stage enforces.
func (e *Editor) IsLocked(role catalog.Role, perm catalog.Permission) bool {
	return catalog.Locked(role, perm)
}
