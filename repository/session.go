package repository

import (
	"context"

	"github.com/lexdesk/officeauth/domain"
)

type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttlSeconds int) error
	// PurgeKeys deletes keys matching the given patterns and reports how many were removed.
	PurgeKeys(ctx context.Context, patterns []string) (int, error)
}

// SessionEventBus fans out session transitions to every subscriber.
type SessionEventBus interface {
	Publish(ctx context.Context, event domain.SessionEvent) error
	// Subscribe delivers events in publish order until ctx is done or the returned func is called.
	Subscribe(ctx context.Context) (<-chan domain.SessionEvent, func(), error)
}
