package grid

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-consulting/meridian-auth/internal/catalog"
	"github.com/meridian-consulting/meridian-auth/internal/platform/db"
)

// Repository defines persistence for the role-permission grid.
type Repository interface {
	ListCells(ctx context.Context) ([]Cell, error)
	// ApplyUpdates upserts all cells in a single transaction: either every
	// tuple lands or none does.
	ApplyUpdates(ctx context.Context, updates []Update) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListCells returns every persisted grid cell.
func (r *PGRepository) ListCells(ctx context.Context) ([]Cell, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role, permission, allowed FROM role_permissions ORDER BY role, permission`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []Cell
	for rows.Next() {
		var cell Cell
		var role, permission string
		if err := rows.Scan(&role, &permission, &cell.Allowed); err != nil {
			return nil, err
		}
		cell.Role = catalog.Role(role)
		cell.Permission = catalog.Permission(permission)
		cells = append(cells, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cells, nil
}

// ApplyUpdates upserts the batch inside one transaction.
func (r *PGRepository) ApplyUpdates(ctx context.Context, updates []Update) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, u := range updates {
			_, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role, permission, allowed, updated_at)
				 VALUES ($1, $2, $3, now())
				 ON CONFLICT (role, permission)
				 DO UPDATE SET allowed = EXCLUDED.allowed, updated_at = now()`,
				string(u.Role), string(u.Permission), u.Allowed)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

var _ Repository = (*PGRepository)(nil)
