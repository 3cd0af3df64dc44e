package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
)

var _ repository.DirectoryRepository = (*directoryRepo)(nil)

type directoryRepo struct {
	pool *pgxpool.Pool
}

func NewDirectoryRepo(pool *pgxpool.Pool) *directoryRepo {
	return &directoryRepo{pool: pool}
}

func (r *directoryRepo) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	row, err := pickRow(ctx, r.pool, nil,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1);`, tenantID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *directoryRepo) EmployeeNames(ctx context.Context, tenantID string, employeeIDs []string) (map[string]string, error) {
	const q = `
SELECT id, full_name FROM employees
 WHERE tenant_id = $1 AND id = ANY($2);`

	rows, err := pickRows(ctx, r.pool, nil, q, tenantID, employeeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string, len(employeeIDs))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		names[id] = name
	}
	return names, rows.Err()
}
