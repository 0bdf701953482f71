package domain

import (
	"strings"
	"time"
)

// Identity is the account issued by the directory. It never changes after sign-up.
type Identity struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"-"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// DisplayName picks the best-effort name from metadata, falling back to the e-mail local part.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	for _, key := range []string{"full_name", "name"} {
		if v := strings.TrimSpace(i.Metadata[key]); v != "" {
			return v
		}
	}
	local, _, _ := strings.Cut(i.Email, "@")
	return local
}

// Profile is the durable application-level user record, one per identity.
type Profile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	OfficeID  *string   `json:"office_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Synthetic marks an in-memory profile that was never persisted.
	Synthetic bool `json:"synthetic,omitempty"`
}

// IsFresh reports whether the profile was created within window of now.
// Super admins never count as fresh.
func (p *Profile) IsFresh(now time.Time, window time.Duration) bool {
	if p == nil || p.Role == RoleSuperAdmin || p.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(p.CreatedAt) < window
}

// SessionUser is the resolved, in-memory view of the signed-in user.
type SessionUser struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Role       Role    `json:"role"`
	OfficeID   *string `json:"office_id,omitempty"`
	OfficeRole *Role   `json:"office_role,omitempty"`
}

// NewSessionUser builds the resolved user from a profile and its optional membership.
func NewSessionUser(profile *Profile, membership *OfficeUser) *SessionUser {
	if profile == nil {
		return nil
	}
	user := &SessionUser{
		ID:    profile.UserID,
		Name:  profile.FullName,
		Email: profile.Email,
		Role:  profile.Role,
	}
	if profile.OfficeID != nil {
		id := *profile.OfficeID
		user.OfficeID = &id
	}
	if membership != nil {
		role := membership.Role
		user.OfficeRole = &role
		if user.OfficeID == nil {
			id := membership.OfficeID
			user.OfficeID = &id
		}
	}
	return user
}
