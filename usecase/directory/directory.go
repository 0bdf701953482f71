// Package directory is the identity provider: credentials, sessions and session events.
package directory

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

const minPasswordLength = 8

// SignUpInput carries the fields of a new identity.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

type Service struct {
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
	events     repository.SessionEventBus
	tokens     *TokenIssuer
	refreshTTL time.Duration
	legacyKeys []string
	bcryptCost int
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Service)

func WithRefreshTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTTL = d
		}
	}
}

// WithLegacyKeys sets the key patterns removed by PurgeLegacy.
func WithLegacyKeys(patterns []string) Option {
	return func(s *Service) { s.legacyKeys = patterns }
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func New(
	identities repository.IdentityRepository,
	sessions repository.SessionRepository,
	events repository.SessionEventBus,
	tokens *TokenIssuer,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		identities: identities,
		sessions:   sessions,
		events:     events,
		tokens:     tokens,
		refreshTTL: 30 * 24 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUp creates an identity and opens its first session.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*domain.Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "invalid email", err)
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.NewError(domain.ErrCodeInvalid, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	identity := &domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		identity.Metadata = map[string]string{"full_name": name}
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}
	s.logger.Info("identity created", zap.String("user_id", identity.ID))
	return s.openSession(ctx, identity)
}

// SignIn exchanges credentials for a session. Unknown e-mails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	identity, err := s.identities.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("sign-in rejected", zap.String("user_id", identity.ID))
		return nil, domain.ErrInvalidCredentials
	}
	return s.openSession(ctx, identity)
}

// GetSession returns a live session; expired ones are removed.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(s.now()) {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Authenticate validates an access token and the session it belongs to.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*domain.Session, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthorized
	}
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid access token", err)
	}
	session, err := s.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if session.UserID != claims.Subject || session.AccessToken != accessToken {
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

// Refresh rotates both tokens of the session owning refreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if session.IsExpired(s.now()) {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, domain.ErrUnauthorized
	}

	// Removes the old refresh index along with the session.
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return nil, err
	}
	if err := s.issue(session); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.SessionTokenRefreshed, session)
	return session, nil
}

// SignOut ends the session. Unknown sessions are not an error.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	if session != nil {
		s.publish(ctx, domain.SessionSignedOut, session)
	}
	return nil
}

// Subscribe streams session transitions. Without an event bus it returns a closed stream.
func (s *Service) Subscribe(ctx context.Context) (<-chan domain.SessionEvent, func(), error) {
	if s.events == nil {
		ch := make(chan domain.SessionEvent)
		close(ch)
		return ch, func() {}, nil
	}
	return s.events.Subscribe(ctx)
}

// PurgeLegacy removes cache entries left behind by earlier deployments.
func (s *Service) PurgeLegacy(ctx context.Context) (int, error) {
	if len(s.legacyKeys) == 0 {
		return 0, nil
	}
	removed, err := s.sessions.PurgeKeys(ctx, s.legacyKeys)
	if removed > 0 {
		s.logger.Info("legacy cache keys removed", zap.Int("count", removed))
	}
	return removed, err
}

func (s *Service) openSession(ctx context.Context, identity *domain.Identity) (*domain.Session, error) {
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    identity.ID,
		Email:     identity.Email,
		CreatedAt: s.now(),
		Metadata:  identity.Metadata,
	}
	if err := s.issue(session); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.SessionSignedIn, session)
	return session, nil
}

// issue mints a fresh token pair; the session lives as long as its refresh token.
func (s *Service) issue(session *domain.Session) error {
	now := s.now()
	access, _, err := s.tokens.Issue(session.UserID, session.ID, session.Email, now)
	if err != nil {
		return err
	}
	session.AccessToken = access
	session.RefreshToken = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	session.ExpiresAt = now.Add(s.refreshTTL)
	return nil
}

func (s *Service) publish(ctx context.Context, kind domain.SessionEventKind, session *domain.Session) {
	if s.events == nil {
		return
	}
	event := domain.SessionEvent{
		Kind:       kind,
		Session:    session,
		SessionID:  session.ID,
		UserID:     session.UserID,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("session event not published", zap.String("kind", string(kind)), zap.Error(err))
	}
}
