// Package payment decides whether an office must be shown the payment wall.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/repository"
)

const (
	DefaultTrialDays = 7
	day              = 24 * time.Hour
)

// SubscriptionChecker is the billing collaborator.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
}

// DaysRegistered counts started days since createdAt; a profile created now is on day 1.
func DaysRegistered(now, createdAt time.Time) int {
	elapsed := now.Sub(createdAt)
	days := int(math.Ceil(float64(elapsed) / float64(day)))
	if days < 1 {
		return 1
	}
	return days
}

// Evaluate is the gate's state machine. lookupErr reports a failed subscription lookup.
func Evaluate(now time.Time, profile *domain.Profile, active bool, lookupErr error, trialDays int) domain.PaymentValidationResult {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	if profile == nil {
		return unknown(0)
	}
	if profile.Role == domain.RoleSuperAdmin {
		return domain.PaymentValidationResult{
			HasActiveSubscription: true,
			PaymentStatus:         domain.PaymentPaid,
			Message:               "Administrative account: billing not required.",
		}
	}

	days := DaysRegistered(now, profile.CreatedAt)
	if lookupErr != nil {
		return unknown(days)
	}
	if active {
		return domain.PaymentValidationResult{
			DaysRegistered:        days,
			HasActiveSubscription: true,
			PaymentStatus:         domain.PaymentPaid,
			Message:               "Subscription active.",
		}
	}
	if days <= trialDays {
		remaining := trialDays - days
		return domain.PaymentValidationResult{
			DaysRegistered: days,
			PaymentStatus:  domain.PaymentTrial,
			Message:        fmt.Sprintf("Trial period: %d day(s) remaining.", remaining),
		}
	}
	return domain.PaymentValidationResult{
		NeedsPayment:   true,
		DaysRegistered: days,
		PaymentStatus:  domain.PaymentOverdue,
		Message:        fmt.Sprintf("Your %d-day trial has ended. Subscribe to keep using the office.", trialDays),
	}
}

func unknown(days int) domain.PaymentValidationResult {
	return domain.PaymentValidationResult{
		DaysRegistered: days,
		PaymentStatus:  domain.PaymentUnknown,
		Message:        "Payment status could not be verified.",
	}
}

// Gate loads the inputs of Evaluate for a user.
type Gate struct {
	profiles  repository.ProfileRepository
	billing   SubscriptionChecker
	trialDays int
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(g *Gate) {
		if fn != nil {
			g.now = fn
		}
	}
}

// WithTimeout bounds each billing lookup.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func New(profiles repository.ProfileRepository, billing SubscriptionChecker, trialDays int, logger *zap.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	g := &Gate{
		profiles:  profiles,
		billing:   billing,
		trialDays: trialDays,
		timeout:   5 * time.Second,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidatePayment loads the profile of userID and evaluates it. It never returns an error:
// every infrastructure failure yields an unknown status without blocking.
func (g *Gate) ValidatePayment(ctx context.Context, userID string) domain.PaymentValidationResult {
	if userID == "" {
		return unknown(0)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	profile, err := g.profiles.GetByUserID(lookupCtx, userID)
	if err != nil {
		g.logger.Warn("payment gate could not load profile", zap.String("user_id", userID), zap.Error(err))
		return unknown(0)
	}
	return g.ValidateProfile(ctx, profile)
}

// ValidateProfile evaluates an already resolved profile.
func (g *Gate) ValidateProfile(ctx context.Context, profile *domain.Profile) domain.PaymentValidationResult {
	if profile == nil {
		return unknown(0)
	}
	if profile.Role == domain.RoleSuperAdmin {
		return Evaluate(g.now(), profile, false, nil, g.trialDays)
	}

	var (
		active    bool
		lookupErr error
	)
	if g.billing == nil {
		lookupErr = errors.New("billing collaborator not configured")
	} else {
		lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
		active, lookupErr = g.billing.HasActiveSubscription(lookupCtx, profile.UserID)
		cancel()
	}
	if lookupErr != nil {
		g.logger.Warn("subscription lookup failed, failing open",
			zap.String("user_id", profile.UserID),
			zap.Error(lookupErr))
	}

	result := Evaluate(g.now(), profile, active, lookupErr, g.trialDays)
	if result.NeedsPayment {
		g.logger.Info("payment required",
			zap.String("user_id", profile.UserID),
			zap.Int("days_registered", result.DaysRegistered))
	}
	return result
}
