package grid

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-consulting/meridian-auth/internal/catalog"
	"github.com/meridian-consulting/meridian-auth/internal/platform/httpx"
)

// Service assembles the grid and applies batch updates.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Document builds the full grid: the catalog defaults for every role,
// overlaid with persisted cells. Rows referencing tags that have left the
// catalog are dropped, and the lockout cell is always true.
func (s *Service) Document(ctx context.Context) (*Document, error) {
	cells, err := s.repo.ListCells(ctx)
	if err != nil {
		return nil, fmt.Errorf("grid: list cells: %w", err)
	}

	matrix := make(map[catalog.Role]map[catalog.Permission]bool, len(catalog.Roles))
	for _, role := range catalog.Roles {
		row := make(map[catalog.Permission]bool, len(catalog.Permissions))
		defaults := catalog.DefaultPermissions(role)
		for _, perm := range catalog.Permissions {
			row[perm] = defaults.Has(perm)
		}
		matrix[role] = row
	}
	for _, cell := range cells {
		if !cell.Role.Valid() || !cell.Permission.Valid() {
			if s.logger != nil {
				s.logger.Warn("dropping stale grid cell",
					slog.String("role", string(cell.Role)),
					slog.String("permission", string(cell.Permission)))
			}
			continue
		}
		matrix[cell.Role][cell.Permission] = cell.Allowed
	}
	matrix[catalog.RoleAdmin][catalog.PermRolePermissions] = true

	categories := make(map[string][]string, len(catalog.CategoryOrder))
	for _, cat := range catalog.CategoryOrder {
		perms := catalog.CategoryPermissions[cat]
		names := make([]string, len(perms))
		for i, p := range perms {
			names[i] = string(p)
		}
		categories[string(cat)] = names
	}
	labels := make(map[string]string, len(catalog.Permissions))
	for _, p := range catalog.Permissions {
		labels[string(p)] = catalog.Label(p)
	}

	return &Document{
		Roles:      append([]catalog.Role(nil), catalog.Roles...),
		Categories: categories,
		Labels:     labels,
		Grid:       matrix,
	}, nil
}

// Apply validates a batch and persists it in one transaction. A batch
// containing any invalid tag or a lockout violation is rejected whole.
func (s *Service) Apply(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		if !u.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, u.Role)
		}
		if !u.Permission.Valid() {
			return fmt.Errorf("%w: unknown permission %q", httpx.ErrValidation, u.Permission)
		}
		if catalog.Locked(u.Role, u.Permission) && !u.Allowed {
			return ErrLockoutViolation
		}
	}
	if err := s.repo.ApplyUpdates(ctx, updates); err != nil {
		return fmt.Errorf("grid: apply updates: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("grid updated", slog.Int("updates", len(updates)))
	}
	return nil
}

// HasPermission answers whether a role currently holds a permission according
// to the persisted grid.
func (s *Service) HasPermission(ctx context.Context, role catalog.Role, perm catalog.Permission) (bool, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return false, err
	}
	row, ok := doc.Grid[role]
	if !ok {
		return false, nil
	}
	return row[perm], nil
}
