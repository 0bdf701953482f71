package usecase

import (
	"context"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

// ProfileWriteBuffer keeps failed profile writes for later replay so resolvers stay storage-agnostic.
type ProfileWriteBuffer interface {
	BufferProfileEnsure(ctx context.Context, input repository.EnsureProfileInput) error
	BufferRoleCorrection(ctx context.Context, userID string, role domain.Role) error
}
