package services

import (
	"context"
	"encoding/json"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/internal/infrastructure/buffer"
	"github.com/lexdesk/officeauth/repository"
	"github.com/lexdesk/officeauth/usecase"
)

// BufferBridge turns profile write failures into buffer items.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferProfileEnsure(ctx context.Context, input repository.EnsureProfileInput) error {
	if b.processor == nil || input.UserID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	priority := 3
	if input.ForceSuperAdmin {
		priority = 1
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    input.UserID,
		Entity:    buffer.EntityProfile,
		Operation: buffer.OperationEnsure,
		Data:      payload,
		Priority:  priority,
	})
}

func (b *BufferBridge) BufferRoleCorrection(ctx context.Context, userID string, role domain.Role) error {
	if b.processor == nil || userID == "" || !role.Valid() {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(buffer.RoleCorrection{UserID: userID, Role: string(role)})
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    userID,
		Entity:    buffer.EntityProfileRole,
		Operation: buffer.OperationUpdate,
		Data:      payload,
		Priority:  2,
	})
}

var _ usecase.ProfileWriteBuffer = (*BufferBridge)(nil)
