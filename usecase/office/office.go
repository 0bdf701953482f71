// Package office attaches tenant context to a resolved profile.
package office

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

// Resolver reads memberships. It never creates or changes one.
type Resolver struct {
	offices repository.OfficeRepository
	timeout time.Duration
	logger  *zap.Logger
}

func New(offices repository.OfficeRepository, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{offices: offices, timeout: timeout, logger: logger}
}

// Resolve returns the active membership of userID and its office, or (nil, nil) when the user
// has none or the lookup failed.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*domain.OfficeUser, *domain.Office) {
	if userID == "" || r.offices == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	membership, office, err := r.offices.ActiveMembership(ctx, userID)
	switch {
	case err == nil:
		return membership, office
	case errors.Is(err, domain.ErrMembershipNotFound):
		r.logger.Debug("user has no active office", zap.String("user_id", userID))
	default:
		r.logger.Warn("office lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil, nil
}
