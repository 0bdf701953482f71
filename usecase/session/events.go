package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
)

// listen consumes session events on one goroutine, in arrival order, until Close.
func (r *Resolver) listen() {
	ctx, cancel := context.WithCancel(context.Background())
	events, unsubscribe, err := r.dir.Subscribe(ctx)
	if err != nil {
		cancel()
		r.logger.Warn("session events unavailable", zap.Error(err))
		return
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.stopEvents = func() {
		cancel()
		unsubscribe()
	}
	r.eventsDone = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				r.HandleEvent(ctx, event)
			}
		}
	}()
}

// HandleEvent applies one session transition. Events about other users are ignored.
func (r *Resolver) HandleEvent(ctx context.Context, event domain.SessionEvent) {
	if r.loggingIn.Load() {
		// The credential exchange in flight settles the state itself.
		return
	}
	r.mu.RLock()
	held := r.state.Session
	pending := r.pending
	r.mu.RUnlock()

	if pending != nil && pending.ID == event.SessionID {
		// The resolution already running covers this session.
		return
	}
	if held == nil || held.UserID != event.UserID {
		return
	}

	log := r.logger.With(zap.String("kind", string(event.Kind)), zap.String("session_id", event.SessionID))

	switch event.Kind {
	case domain.SessionSignedOut:
		if event.SessionID != held.ID {
			return
		}
		gen := r.generation.Add(1)
		r.clear(gen)
		r.forget(ctx)
		log.Info("session ended elsewhere")

	case domain.SessionSignedIn, domain.SessionTokenRefreshed:
		if event.SessionID == held.ID {
			r.swapTokens(ctx, event.Session)
			return
		}
		// Another session of the same user: state may have changed underneath us.
		gen := r.generation.Add(1)
		if _, err := r.resolve(ctx, gen, held); err != nil && !errors.Is(err, errStale) {
			log.Warn("re-resolution after session event failed", zap.Error(err))
			if r.clear(gen) != nil {
				r.forget(ctx)
			}
		}
	}
}

// swapTokens updates the held session in place when the event carries new tokens.
func (r *Resolver) swapTokens(ctx context.Context, incoming *domain.Session) {
	if incoming == nil {
		return
	}
	r.mu.Lock()
	held := r.state.Session
	if held == nil || held.ID != incoming.ID {
		r.mu.Unlock()
		return
	}
	next := *held
	if incoming.AccessToken != "" {
		next.AccessToken = incoming.AccessToken
		next.RefreshToken = incoming.RefreshToken
	}
	if !incoming.ExpiresAt.IsZero() {
		next.ExpiresAt = incoming.ExpiresAt
	}
	state := r.state
	state.Session = &next
	r.state = state
	r.mu.Unlock()

	if incoming.AccessToken != "" {
		r.save(ctx, &next)
	}
}
