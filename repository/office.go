package repository

import (
	"context"

	"github.com/lexdesk/officeauth/domain"
)

// OfficeRepository exposes tenant membership lookups. It is read-only for the access core.
type OfficeRepository interface {
	// ActiveMembership returns the active membership of userID joined with its office.
	ActiveMembership(ctx context.Context, userID string) (*domain.OfficeUser, *domain.Office, error)
}

// SystemAdminRepository lists e-mails granted global administration.
type SystemAdminRepository interface {
	IsSystemAdmin(ctx context.Context, email string) (bool, error)
}

// SubscriptionRepository answers whether the office of a user holds an active subscription.
type SubscriptionRepository interface {
	LatestStatus(ctx context.Context, userID string) (domain.SubscriptionStatus, error)
}
