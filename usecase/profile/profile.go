// Package profile turns a directory identity into exactly one application profile.
package profile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
	"github.com/lexdesk/officeauth/usecase"
)

// Fallback steps reported to the Observer.
const (
	StepFetchFailed = "fetch_failed"
	StepCreated     = "created"
	StepEmergency   = "emergency_upsert"
	StepRoleFixed   = "role_corrected"
	StepBuffered    = "buffered"
	StepSynthesized = "synthesized"
	StepUnavailable = "unavailable"
)

// Observer receives one call per fallback step taken.
type Observer interface {
	ProfileFallback(step string)
}

// Result is the outcome of one resolution.
type Result struct {
	Profile     *domain.Profile
	AllowListed bool
	// Degraded is set when the profile is not backed by a stored row.
	Degraded bool
}

type Resolver struct {
	profiles repository.ProfileRepository
	policy   SystemAdminPolicy
	buffer   usecase.ProfileWriteBuffer
	observer Observer
	timeout  time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Resolver)

func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

func WithClock(fn func() time.Time) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithFreshWindow sets how long after creation a profile counts as a first login.
func WithFreshWindow(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.window = d
		}
	}
}

func New(profiles repository.ProfileRepository, policy SystemAdminPolicy, buffer usecase.ProfileWriteBuffer, timeout time.Duration, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewStaticPolicy()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &Resolver{
		profiles: profiles,
		policy:   policy,
		buffer:   buffer,
		timeout:  timeout,
		window:   time.Minute,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAllowListed exposes the policy decision for identity.
func (r *Resolver) IsAllowListed(ctx context.Context, identity *domain.Identity) bool {
	return identity != nil && r.policy.IsSystemAdmin(ctx, identity.Email)
}

// IsFirstLogin reports whether profile was created moments ago.
func (r *Resolver) IsFirstLogin(profile *domain.Profile) bool {
	return profile.IsFresh(r.now(), r.window)
}

// Resolve walks the fetch, create, repair ladder. The only error is ErrProfileUnavailable
// for an identity that has no profile and is not allow-listed.
func (r *Resolver) Resolve(ctx context.Context, identity *domain.Identity) (Result, error) {
	if identity == nil || identity.ID == "" {
		return Result{}, domain.ErrInvalidPayload
	}
	log := r.logger.With(zap.String("user_id", identity.ID))
	allowListed := r.IsAllowListed(ctx, identity)
	res := Result{AllowListed: allowListed}

	profile := r.fetch(ctx, identity.ID, log)

	if profile == nil {
		input := repository.EnsureProfileInput{
			UserID:   identity.ID,
			Email:    identity.Email,
			FullName: identity.DisplayName(),
			Role:     domain.RoleUser,
		}
		if allowListed {
			input.Role = domain.RoleSuperAdmin
		}

		created, err := r.ensure(ctx, input)
		if err == nil {
			r.step(StepCreated)
			profile = created
		} else {
			log.Warn("profile create failed", zap.Error(err))
		}

		if profile == nil && allowListed {
			input.ForceSuperAdmin = true
			created, err = r.ensure(ctx, input)
			r.step(StepEmergency)
			if err == nil {
				profile = created
			} else {
				log.Error("emergency super admin upsert failed", zap.Error(err))
			}
		}

		if profile == nil {
			r.bufferEnsure(ctx, input, log)
		}
	}

	if profile != nil && allowListed && profile.Role != domain.RoleSuperAdmin {
		r.step(StepRoleFixed)
		if err := r.updateRole(ctx, identity.ID); err != nil {
			log.Warn("role correction failed", zap.Error(err))
			r.bufferRole(ctx, identity.ID, log)
		}
		profile.Role = domain.RoleSuperAdmin
	}

	// The stored row wins over whatever was built locally.
	if stored := r.fetch(ctx, identity.ID, log); stored != nil {
		if allowListed && stored.Role != domain.RoleSuperAdmin {
			stored.Role = domain.RoleSuperAdmin
		}
		profile = stored
	} else if profile != nil {
		res.Degraded = true
	}

	if profile == nil {
		if !allowListed {
			r.step(StepUnavailable)
			log.Error("no profile and not allow-listed")
			return Result{}, domain.ErrProfileUnavailable
		}
		r.step(StepSynthesized)
		log.Warn("serving synthesized super admin profile")
		profile = r.synthesize(identity)
		res.Degraded = true
	}

	res.Profile = profile
	return res, nil
}

func (r *Resolver) fetch(ctx context.Context, userID string, log *zap.Logger) *domain.Profile {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	profile, err := r.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			r.step(StepFetchFailed)
			log.Warn("profile fetch failed", zap.Error(err))
		}
		return nil
	}
	return profile
}

func (r *Resolver) ensure(ctx context.Context, input repository.EnsureProfileInput) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.profiles.Ensure(ctx, input)
}

func (r *Resolver) updateRole(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.profiles.UpdateRole(ctx, userID, domain.RoleSuperAdmin)
}

func (r *Resolver) bufferEnsure(ctx context.Context, input repository.EnsureProfileInput, log *zap.Logger) {
	if r.buffer == nil {
		return
	}
	if err := r.buffer.BufferProfileEnsure(ctx, input); err != nil {
		log.Error("failed to buffer profile create", zap.Error(err))
		return
	}
	r.step(StepBuffered)
}

func (r *Resolver) bufferRole(ctx context.Context, userID string, log *zap.Logger) {
	if r.buffer == nil {
		return
	}
	if err := r.buffer.BufferRoleCorrection(ctx, userID, domain.RoleSuperAdmin); err != nil {
		log.Error("failed to buffer role correction", zap.Error(err))
		return
	}
	r.step(StepBuffered)
}

func (r *Resolver) synthesize(identity *domain.Identity) *domain.Profile {
	now := r.now()
	return &domain.Profile{
		UserID:    identity.ID,
		Email:     identity.Email,
		FullName:  identity.DisplayName(),
		Role:      domain.RoleSuperAdmin,
		CreatedAt: now,
		UpdatedAt: now,
		Synthetic: true,
	}
}

func (r *Resolver) step(name string) {
	if r.observer != nil {
		r.observer.ProfileFallback(name)
	}
}
