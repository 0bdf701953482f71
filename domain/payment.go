package domain

// PaymentStatus is the billing state reported by the trial/payment gate.
type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentPending  PaymentStatus = "pending"
	PaymentOverdue  PaymentStatus = "overdue"
	PaymentCanceled PaymentStatus = "canceled"
	PaymentUnknown  PaymentStatus = "unknown"
	PaymentTrial    PaymentStatus = "trial"
)

// PaymentValidationResult tells the presentation layer whether to show the payment wall.
type PaymentValidationResult struct {
	NeedsPayment          bool          `json:"needsPayment"`
	DaysRegistered        int           `json:"daysRegistered"`
	HasActiveSubscription bool          `json:"hasActiveSubscription"`
	PaymentStatus         PaymentStatus `json:"paymentStatus"`
	Message               string        `json:"message"`
}

// SubscriptionStatus mirrors the status column of a stored subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionPending  SubscriptionStatus = "pending"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// GrantsAccess reports whether the subscription counts as active for gating.
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}
