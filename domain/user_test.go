package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		identity *Identity
		want     string
	}{
		{"full name metadata", &Identity{Email: "ana@firm.com", Metadata: map[string]string{"full_name": "Ana Souza"}}, "Ana Souza"},
		{"name metadata", &Identity{Email: "ana@firm.com", Metadata: map[string]string{"name": "Ana"}}, "Ana"},
		{"blank metadata falls back", &Identity{Email: "ana.souza@firm.com", Metadata: map[string]string{"full_name": "  "}}, "ana.souza"},
		{"no metadata", &Identity{Email: "bob@firm.com"}, "bob"},
		{"nil identity", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.identity.DisplayName())
		})
	}
}

func TestProfileIsFresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fresh := &Profile{Role: RoleUser, CreatedAt: now.Add(-30 * time.Second)}
	assert.True(t, fresh.IsFresh(now, time.Minute))

	old := &Profile{Role: RoleUser, CreatedAt: now.Add(-2 * time.Minute)}
	assert.False(t, old.IsFresh(now, time.Minute))

	admin := &Profile{Role: RoleSuperAdmin, CreatedAt: now}
	assert.False(t, admin.IsFresh(now, time.Minute))

	var missing *Profile
	assert.False(t, missing.IsFresh(now, time.Minute))
}

func TestNewSessionUser(t *testing.T) {
	officeID := "office-1"
	profile := &Profile{UserID: "u1", Email: "ana@firm.com", FullName: "Ana", Role: RoleUser}
	membership := &OfficeUser{OfficeID: officeID, UserID: "u1", Role: RoleAdmin, Active: true}

	user := NewSessionUser(profile, membership)
	if assert.NotNil(t, user) {
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, RoleUser, user.Role)
		if assert.NotNil(t, user.OfficeRole) {
			assert.Equal(t, RoleAdmin, *user.OfficeRole)
		}
		if assert.NotNil(t, user.OfficeID) {
			assert.Equal(t, officeID, *user.OfficeID)
		}
	}

	assert.Nil(t, NewSessionUser(nil, membership))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleSuperAdmin, ParseRole(" SUPER_ADMIN "))
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleUser, ParseRole("owner"))
	assert.True(t, RoleAdmin.IsOfficeAdmin())
	assert.False(t, RoleUser.IsOfficeAdmin())
}

func TestIsDomainError(t *testing.T) {
	wrapped := WrapError(ErrCodeInternal, "lookup failed", ErrProfileNotFound)
	assert.True(t, IsDomainError(ErrLoginInProgress, ErrCodeLoginInProgress))
	assert.True(t, IsDomainError(wrapped, ErrCodeInternal))
	assert.False(t, IsDomainError(wrapped, ErrCodeInvalid))
}
