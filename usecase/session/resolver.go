package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/usecase/directory"
	"github.com/lexdesk/officeauth/usecase/permission"
)

// Directory is the identity provider the resolver talks to.
type Directory interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, in directory.SignUpInput) (*domain.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, accessToken string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Subscribe(ctx context.Context) (<-chan domain.SessionEvent, func(), error)
	PurgeLegacy(ctx context.Context) (int, error)
}

// TokenStore keeps the tokens of the current client between runs.
// Load returns (nil, nil) when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Clear(ctx context.Context) error
}

// LoginObserver is told about every credential exchange outcome.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

const (
	LoginSucceeded  = "success"
	LoginRejected   = "invalid_credentials"
	LoginNoProfile  = "profile_unavailable"
	LoginFailed     = "error"
	LoginConcurrent = "in_progress"
)

var errStale = errors.New("session: resolution superseded")

// Resolver owns the authentication state of one client. Readers get snapshots;
// every write replaces the state as a whole.
type Resolver struct {
	dir      Directory
	pipeline *Pipeline
	tokens   TokenStore
	observer LoginObserver
	timeout  time.Duration
	logger   *zap.Logger

	initOnce   sync.Once
	generation atomic.Uint64
	loggingIn  atomic.Bool
	resolveMu  sync.Mutex

	mu             sync.RWMutex
	state          State
	loading        bool
	pending        *domain.Session
	pendingAllowed bool
	dismissed      bool

	stopEvents func()
	eventsDone chan struct{}
}

type Option func(*Resolver)

func WithTokenStore(store TokenStore) Option {
	return func(r *Resolver) { r.tokens = store }
}

func WithLoginObserver(o LoginObserver) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithSessionTimeout bounds the initial session lookup.
func WithSessionTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewResolver(dir Directory, pipeline *Pipeline, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		dir:      dir,
		pipeline: pipeline,
		timeout:  3 * time.Second,
		logger:   logger,
		loading:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize restores the stored session and starts listening for session events.
// Only the first call does any work.
func (r *Resolver) Initialize(ctx context.Context) {
	r.initOnce.Do(func() {
		purgeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		if _, err := r.dir.PurgeLegacy(purgeCtx); err != nil {
			r.logger.Warn("legacy cache purge failed", zap.Error(err))
		}
		cancel()

		// The generation is taken before the lookup so a Logout during it wins.
		gen := r.generation.Add(1)
		if session := r.restore(ctx, gen); session != nil {
			if r.generation.Load() != gen {
				r.endStale(ctx, session)
			} else if _, err := r.resolve(ctx, gen, session); err != nil && !errors.Is(err, errStale) {
				r.logger.Warn("stored session could not be resolved", zap.Error(err))
				r.forget(ctx)
			}
		}
		r.setLoading(false)
		r.listen()
	})
}

// Close stops the event subscription.
func (r *Resolver) Close() {
	r.mu.Lock()
	stop, done := r.stopEvents, r.eventsDone
	r.stopEvents = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

// Login signs in with credentials and resolves the session. A second call while one is
// running fails with domain.ErrLoginInProgress and never reaches the directory.
func (r *Resolver) Login(ctx context.Context, email, password string) error {
	return r.exchange(ctx, func(ctx context.Context) (*domain.Session, error) {
		return r.dir.SignIn(ctx, email, password)
	})
}

// Register creates an identity, signs it in and resolves it.
func (r *Resolver) Register(ctx context.Context, in directory.SignUpInput) error {
	return r.exchange(ctx, func(ctx context.Context) (*domain.Session, error) {
		return r.dir.SignUp(ctx, in)
	})
}

func (r *Resolver) exchange(ctx context.Context, signIn func(context.Context) (*domain.Session, error)) error {
	if !r.loggingIn.CompareAndSwap(false, true) {
		r.observe(LoginConcurrent)
		return domain.ErrLoginInProgress
	}
	defer r.loggingIn.Store(false)

	session, err := signIn(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			r.observe(LoginRejected)
		} else {
			r.observe(LoginFailed)
		}
		return err
	}
	r.save(ctx, session)

	gen := r.generation.Add(1)
	replaced, err := r.resolve(ctx, gen, session)
	switch {
	case err == nil:
		r.observe(LoginSucceeded)
		r.logger.Info("signed in", zap.String("user_id", session.UserID))
		if replaced != nil {
			if signOutErr := r.dir.SignOut(ctx, replaced.ID); signOutErr != nil {
				r.logger.Warn("previous session not signed out", zap.String("session_id", replaced.ID), zap.Error(signOutErr))
			}
		}
		return nil
	case errors.Is(err, errStale):
		// A logout or a newer session won the race; its state stands.
		return nil
	case errors.Is(err, domain.ErrProfileUnavailable):
		r.observe(LoginNoProfile)
	default:
		r.observe(LoginFailed)
	}
	r.clear(gen)
	r.forget(ctx)
	if signOutErr := r.dir.SignOut(ctx, session.ID); signOutErr != nil {
		r.logger.Warn("directory sign-out after failed resolution", zap.Error(signOutErr))
	}
	return err
}

// Logout clears the resolved state in one step, then ends the directory session.
func (r *Resolver) Logout(ctx context.Context) {
	gen := r.generation.Add(1)
	held := r.clear(gen)
	r.forget(ctx)
	if held == nil {
		return
	}
	if err := r.dir.SignOut(ctx, held.ID); err != nil {
		r.logger.Warn("directory sign-out failed", zap.String("session_id", held.ID), zap.Error(err))
	}
	r.logger.Info("signed out", zap.String("user_id", held.UserID))
}

func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Resolver) CurrentUser() *domain.SessionUser {
	return r.State().User
}

func (r *Resolver) IsAuthenticated() bool {
	return r.State().Authenticated()
}

func (r *Resolver) IsLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// IsFirstLogin reports whether the resolved profile was created moments ago.
func (r *Resolver) IsFirstLogin() bool {
	return r.State().FirstLogin
}

// Permissions derives the capability set from the current state.
func (r *Resolver) Permissions() domain.FeaturePermissions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in := permissionInput(r.state, r.loading)
	if r.loading && r.state.Profile == nil {
		in.AllowListed = r.pendingAllowed
	}
	return permission.Resolve(in)
}

// ValidatePayment re-evaluates the payment gate for the resolved profile.
func (r *Resolver) ValidatePayment(ctx context.Context) domain.PaymentValidationResult {
	gen := r.generation.Load()
	snapshot := r.State()
	if snapshot.Profile == nil {
		return domain.PaymentValidationResult{PaymentStatus: domain.PaymentUnknown, Message: "Not signed in."}
	}

	result := r.pipeline.Payment(ctx, snapshot.Profile)

	r.mu.Lock()
	if r.generation.Load() == gen && r.state.Profile != nil {
		next := r.state
		next.Payment = result
		r.state = next
	}
	r.mu.Unlock()
	return result
}

// ShowPaymentModal is true when the gate demands payment and the user has not dismissed it.
func (r *Resolver) ShowPaymentModal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Authenticated() && r.state.Payment.NeedsPayment && !r.dismissed
}

// DismissPaymentModal hides the payment wall until the next resolution.
func (r *Resolver) DismissPaymentModal() {
	r.mu.Lock()
	r.dismissed = true
	r.mu.Unlock()
}

// resolve runs the pipeline for session and commits the result if gen is still current.
// Resolutions are serialised so two of them never write the same profile row concurrently.
// On commit it returns the previously held session when that was a different one.
func (r *Resolver) resolve(ctx context.Context, gen uint64, session *domain.Session) (*domain.Session, error) {
	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	identity := session.Identity()
	r.mu.Lock()
	if r.generation.Load() != gen {
		r.mu.Unlock()
		return nil, errStale
	}
	r.loading = true
	r.pending = session
	r.mu.Unlock()

	allowListed := r.pipeline.IsAllowListed(ctx, identity)
	r.mu.Lock()
	if r.generation.Load() == gen {
		r.pendingAllowed = allowListed
	}
	r.mu.Unlock()

	state, err := r.pipeline.Resolve(ctx, identity)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation.Load() != gen {
		r.logger.Debug("discarding stale resolution", zap.String("user_id", session.UserID))
		return nil, errStale
	}
	r.loading = false
	r.pending = nil
	r.pendingAllowed = false
	if err != nil {
		return nil, err
	}
	replaced := r.state.Session
	if replaced != nil && replaced.ID == session.ID {
		replaced = nil
	}
	state.Session = session
	r.state = state
	r.dismissed = false
	return replaced, nil
}

// clear empties the state when gen is current and returns the session that was held.
func (r *Resolver) clear(gen uint64) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation.Load() != gen {
		return nil
	}
	held := r.state.Session
	if held == nil {
		held = r.pending
	}
	r.state = State{}
	r.loading = false
	r.pending = nil
	r.pendingAllowed = false
	r.dismissed = false
	return held
}

func (r *Resolver) setLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
}

// restore looks up the stored session within the session timeout. Any failure means no session.
// A refreshed session is only persisted while gen is current.
func (r *Resolver) restore(ctx context.Context, gen uint64) *domain.Session {
	if r.tokens == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stored, err := r.tokens.Load(ctx)
	if err != nil || stored == nil {
		if err != nil {
			r.logger.Warn("stored tokens unreadable", zap.Error(err))
		}
		return nil
	}

	session, err := r.dir.Authenticate(ctx, stored.AccessToken)
	if err == nil {
		return session
	}
	if stored.RefreshToken == "" || ctx.Err() != nil {
		r.logger.Info("no usable session", zap.Error(err))
		return nil
	}
	session, err = r.dir.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		r.logger.Info("stored session expired", zap.Error(err))
		if r.generation.Load() == gen {
			r.forget(ctx)
		}
		return nil
	}
	if r.generation.Load() == gen {
		r.save(ctx, session)
	}
	return session
}

// endStale signs out a session that was restored after the user logged out.
func (r *Resolver) endStale(ctx context.Context, session *domain.Session) {
	r.logger.Debug("discarding restored session after logout", zap.String("session_id", session.ID))
	if err := r.dir.SignOut(ctx, session.ID); err != nil {
		r.logger.Warn("restored session not signed out", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (r *Resolver) save(ctx context.Context, session *domain.Session) {
	if r.tokens == nil {
		return
	}
	if err := r.tokens.Save(ctx, session); err != nil {
		r.logger.Warn("tokens not persisted", zap.Error(err))
	}
}

func (r *Resolver) forget(ctx context.Context) {
	if r.tokens == nil {
		return
	}
	if err := r.tokens.Clear(ctx); err != nil {
		r.logger.Warn("stored tokens not cleared", zap.Error(err))
	}
}

func (r *Resolver) observe(outcome string) {
	if r.observer != nil {
		r.observer.ObserveLogin(outcome)
	}
}
