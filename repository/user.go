package repository

import (
	"context"

	"github.com/lexdesk/officeauth/domain"
)

// IdentityRepository persists directory identities and their credentials.
type IdentityRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	Create(ctx context.Context, identity *domain.Identity) error
}

// EnsureProfileInput describes the atomic create-or-reconcile of a profile row.
type EnsureProfileInput struct {
	UserID   string
	Email    string
	FullName string
	Role     domain.Role
	// ForceSuperAdmin rewrites the stored role to super_admin when the row already exists.
	ForceSuperAdmin bool
}

// ProfileRepository reads and reconciles application profiles.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)
	Ensure(ctx context.Context, input EnsureProfileInput) (*domain.Profile, error)
	UpdateRole(ctx context.Context, userID string, role domain.Role) error
}
