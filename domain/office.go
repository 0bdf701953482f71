package domain

import "time"

// Plan identifies the pricing tier of an office.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Office is a tenant (law firm).
type Office struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Plan             Plan      `json:"plan"`
	MaxUsers         int       `json:"max_users"`
	Active           bool      `json:"active"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OfficeUser links a profile to an office with an office-scoped role.
type OfficeUser struct {
	ID       string    `json:"id"`
	OfficeID string    `json:"office_id"`
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	Active   bool      `json:"active"`
	JoinedAt time.Time `json:"joined_at"`
}
