package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

type officeRepository struct {
	pool *pgxpool.Pool
}

// NewOfficeRepository returns a Postgres-backed implementation of OfficeRepository.
func NewOfficeRepository(pool *pgxpool.Pool) repository.OfficeRepository {
	return &officeRepository{pool: pool}
}

func (r *officeRepository) ActiveMembership(ctx context.Context, userID string) (*domain.OfficeUser, *domain.Office, error) {
	const query = `
	SELECT ou.id, ou.office_id, ou.user_id, ou.role, ou.active, ou.joined_at,
		o.id, o.name, o.plan, o.max_users, o.active, COALESCE(o.stripe_customer_id, ''), o.created_at, o.updated_at
	FROM office_users ou
	JOIN offices o ON o.id = ou.office_id
	WHERE ou.user_id = $1 AND ou.active = TRUE
	ORDER BY ou.joined_at DESC
	LIMIT 1
	`

	var (
		member     domain.OfficeUser
		office     domain.Office
		memberRole string
		plan       string
	)
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&member.ID,
		&member.OfficeID,
		&member.UserID,
		&memberRole,
		&member.Active,
		&member.JoinedAt,
		&office.ID,
		&office.Name,
		&plan,
		&office.MaxUsers,
		&office.Active,
		&office.StripeCustomerID,
		&office.CreatedAt,
		&office.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrMembershipNotFound
		}
		return nil, nil, err
	}

	member.Role = domain.ParseRole(memberRole)
	office.Plan = domain.Plan(plan)
	return &member, &office, nil
}
