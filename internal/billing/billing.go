// Package billing answers "does this user's office hold an active subscription".
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/internal/config"
	"github.com/lexdesk/officeauth/repository"
)

var ErrProviderDown = errors.New("billing provider unavailable")

// Checker reports whether the office of a user is covered by a subscription.
type Checker interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
}

// DatabaseChecker reads the subscriptions table.
type DatabaseChecker struct {
	subscriptions repository.SubscriptionRepository
}

func NewDatabaseChecker(subscriptions repository.SubscriptionRepository) *DatabaseChecker {
	return &DatabaseChecker{subscriptions: subscriptions}
}

func (c *DatabaseChecker) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	status, err := c.subscriptions.LatestStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.GrantsAccess(), nil
}

// SubscriptionLister is the slice of the Stripe client the checker needs.
type SubscriptionLister interface {
	ActiveStatuses(ctx context.Context, customerID string) ([]domain.SubscriptionStatus, error)
}

// StripeChecker asks Stripe about the customer attached to the user's office.
type StripeChecker struct {
	offices repository.OfficeRepository
	lister  SubscriptionLister
	logger  *zap.Logger
}

func NewStripeChecker(offices repository.OfficeRepository, lister SubscriptionLister, logger *zap.Logger) *StripeChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeChecker{offices: offices, lister: lister, logger: logger}
}

func (c *StripeChecker) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	_, office, err := c.offices.ActiveMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}
	if office == nil || office.StripeCustomerID == "" {
		return false, nil
	}

	statuses, err := c.lister.ActiveStatuses(ctx, office.StripeCustomerID)
	if err != nil {
		return false, err
	}
	for _, status := range statuses {
		if status.GrantsAccess() {
			return true, nil
		}
	}
	c.logger.Debug("no active stripe subscription", zap.String("office_id", office.ID))
	return false, nil
}

// StripeLister lists subscriptions through the Stripe API.
type StripeLister struct {
	client *client.API
}

func NewStripeLister(secretKey string) *StripeLister {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeLister{client: sc}
}

func (l *StripeLister) ActiveStatuses(ctx context.Context, customerID string) ([]domain.SubscriptionStatus, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(10)

	var statuses []domain.SubscriptionStatus
	iter := l.client.Subscriptions.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		statuses = append(statuses, domain.SubscriptionStatus(sub.Status))
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError(err)
	}
	return statuses, nil
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrProviderDown, stripeErr.Msg)
	}
	return fmt.Errorf("stripe subscriptions: %w", err)
}

// NewChecker picks the collaborator named by cfg.Provider.
func NewChecker(cfg config.BillingConfig, subscriptions repository.SubscriptionRepository, offices repository.OfficeRepository, logger *zap.Logger) (Checker, error) {
	switch cfg.Provider {
	case "", config.BillingProviderDatabase:
		return NewDatabaseChecker(subscriptions), nil
	case config.BillingProviderStripe:
		return NewStripeChecker(offices, NewStripeLister(cfg.StripeSecretKey), logger), nil
	default:
		return nil, fmt.Errorf("unknown billing provider %q", cfg.Provider)
	}
}
