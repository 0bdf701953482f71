package redis

import (
	"context"
	"encoding/json"
	"sync"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

type sessionEventBus struct {
	client  *redislib.Client
	channel string
	logger  *zap.Logger
}

// NewSessionEventBus publishes session transitions on a Redis channel.
func NewSessionEventBus(client *redislib.Client, channel string, logger *zap.Logger) repository.SessionEventBus {
	if channel == "" {
		channel = "auth:session-events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sessionEventBus{client: client, channel: channel, logger: logger}
}

func (b *sessionEventBus) Publish(ctx context.Context, event domain.SessionEvent) error {
	if event.Session != nil {
		// Tokens never leave the session store.
		stripped := *event.Session
		stripped.AccessToken = ""
		stripped.RefreshToken = ""
		event.Session = &stripped
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *sessionEventBus) Subscribe(ctx context.Context) (<-chan domain.SessionEvent, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan domain.SessionEvent)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	go func() {
		defer close(out)
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event domain.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("dropping malformed session event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					stop()
					return
				case <-done:
					return
				}
			}
		}
	}()

	return out, stop, nil
}
