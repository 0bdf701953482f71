package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexdesk/officeauth/repository"
)

type systemAdminRepository struct {
	pool *pgxpool.Pool
}

// NewSystemAdminRepository reads the system_admins table.
func NewSystemAdminRepository(pool *pgxpool.Pool) repository.SystemAdminRepository {
	return &systemAdminRepository{pool: pool}
}

func (r *systemAdminRepository) IsSystemAdmin(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM system_admins WHERE email = $1 AND revoked_at IS NULL)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, normalizeEmail(email)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
