package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

type sessionRepository struct {
	client        *redislib.Client
	prefix        string
	refreshPrefix string
	ttl           time.Duration
}

// NewSessionRepository creates a Redis-backed session repository.
func NewSessionRepository(client *redislib.Client, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &sessionRepository{
		client:        client,
		prefix:        "session:",
		refreshPrefix: "session:refresh:",
		ttl:           ttl,
	}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	result, err := r.client.Get(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	id, err := r.client.Get(ctx, r.refreshPrefix+refreshToken).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.ExpiresAt.Before(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = r.ttl
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(session.ID), payload, ttl)
	if session.RefreshToken != "" {
		pipe.Set(ctx, r.refreshPrefix+session.RefreshToken, session.ID, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	keys := []string{r.key(id)}
	if session != nil && session.RefreshToken != "" {
		keys = append(keys, r.refreshPrefix+session.RefreshToken)
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *sessionRepository) Extend(ctx context.Context, id string, ttlSeconds int) error {
	duration := time.Duration(ttlSeconds) * time.Second
	if duration <= 0 {
		duration = r.ttl
	}
	return r.client.Expire(ctx, r.key(id), duration).Err()
}

func (r *sessionRepository) PurgeKeys(ctx context.Context, patterns []string) (int, error) {
	removed := 0
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return removed, err
		}
		if len(batch) == 0 {
			continue
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

func (r *sessionRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}
