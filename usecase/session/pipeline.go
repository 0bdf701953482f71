// Package session turns a directory session into a resolved user, permissions and payment state.
package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/usecase/office"
	"github.com/lexdesk/officeauth/usecase/payment"
	"github.com/lexdesk/officeauth/usecase/permission"
	"github.com/lexdesk/officeauth/usecase/profile"
)

// State is everything known about the signed-in user. It is replaced as a whole.
type State struct {
	Session     *domain.Session                `json:"-"`
	User        *domain.SessionUser            `json:"user"`
	Profile     *domain.Profile                `json:"profile"`
	Office      *domain.Office                 `json:"office,omitempty"`
	Membership  *domain.OfficeUser             `json:"office_user,omitempty"`
	Permissions domain.FeaturePermissions      `json:"permissions"`
	Payment     domain.PaymentValidationResult `json:"payment"`
	AllowListed bool                           `json:"-"`
	FirstLogin  bool                           `json:"first_login"`
	Degraded    bool                           `json:"degraded"`
}

// Authenticated reports whether a user is resolved.
func (s State) Authenticated() bool {
	return s.User != nil
}

// PaymentObserver is told about every payment evaluation.
type PaymentObserver interface {
	ObservePayment(status domain.PaymentStatus)
}

// Pipeline runs profile, office, permission and payment resolution for one identity.
// It holds no per-user state and is safe for concurrent use.
type Pipeline struct {
	profiles *profile.Resolver
	offices  *office.Resolver
	gate     *payment.Gate
	observer PaymentObserver
	logger   *zap.Logger
}

func NewPipeline(profiles *profile.Resolver, offices *office.Resolver, gate *payment.Gate, observer PaymentObserver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		profiles: profiles,
		offices:  offices,
		gate:     gate,
		observer: observer,
		logger:   logger,
	}
}

// IsAllowListed reports the allow-list decision for the raw identity.
func (p *Pipeline) IsAllowListed(ctx context.Context, identity *domain.Identity) bool {
	return p.profiles.IsAllowListed(ctx, identity)
}

// Resolve fails only with domain.ErrProfileUnavailable or domain.ErrInvalidPayload.
func (p *Pipeline) Resolve(ctx context.Context, identity *domain.Identity) (State, error) {
	res, err := p.profiles.Resolve(ctx, identity)
	if err != nil {
		return State{}, err
	}

	membership, office := p.offices.Resolve(ctx, res.Profile.UserID)

	state := State{
		User:        domain.NewSessionUser(res.Profile, membership),
		Profile:     res.Profile,
		Office:      office,
		Membership:  membership,
		AllowListed: res.AllowListed,
		FirstLogin:  p.profiles.IsFirstLogin(res.Profile),
		Degraded:    res.Degraded,
	}
	state.Permissions = permission.Resolve(permissionInput(state, false))
	state.Payment = p.Payment(ctx, res.Profile)

	p.logger.Debug("session resolved",
		zap.String("user_id", res.Profile.UserID),
		zap.String("role", string(res.Profile.Role)),
		zap.Bool("has_office", office != nil),
		zap.Bool("degraded", res.Degraded))
	return state, nil
}

// Payment evaluates the gate for an already resolved profile.
func (p *Pipeline) Payment(ctx context.Context, prof *domain.Profile) domain.PaymentValidationResult {
	result := p.gate.ValidateProfile(ctx, prof)
	if p.observer != nil {
		p.observer.ObservePayment(result.PaymentStatus)
	}
	return result
}

func permissionInput(s State, loading bool) permission.Input {
	in := permission.Input{
		Loading:     loading,
		Profile:     s.Profile,
		AllowListed: s.AllowListed,
	}
	if s.Membership != nil {
		role := s.Membership.Role
		in.OfficeRole = &role
	}
	return in
}
