package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

type subscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository reads subscription rows of the offices a user belongs to.
func NewSubscriptionRepository(pool *pgxpool.Pool) repository.SubscriptionRepository {
	return &subscriptionRepository{pool: pool}
}

// LatestStatus returns an empty status when the user's office has no subscription row.
func (r *subscriptionRepository) LatestStatus(ctx context.Context, userID string) (domain.SubscriptionStatus, error) {
	const query = `
	SELECT s.status
	FROM subscriptions s
	WHERE s.office_id IN (
		SELECT office_id FROM office_users WHERE user_id = $1 AND active = TRUE
		UNION
		SELECT office_id FROM profiles WHERE user_id = $1 AND office_id IS NOT NULL
	)
	ORDER BY s.updated_at DESC
	LIMIT 1
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var status string
	if rows.Next() {
		if err := rows.Scan(&status); err != nil {
			return "", err
		}
	}
	return domain.SubscriptionStatus(status), rows.Err()
}
