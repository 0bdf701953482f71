package domain

import "time"

// Session represents a directory-issued authentication session stored in Redis.
type Session struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Email        string            `json:"email"`
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at"`
	CreatedAt    time.Time         `json:"created_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// Identity returns the identity view carried by the session.
func (s *Session) Identity() *Identity {
	if s == nil {
		return nil
	}
	return &Identity{ID: s.UserID, Email: s.Email, Metadata: s.Metadata}
}

// SessionEventKind enumerates directory session transitions.
type SessionEventKind string

const (
	SessionSignedIn       SessionEventKind = "SIGNED_IN"
	SessionSignedOut      SessionEventKind = "SIGNED_OUT"
	SessionTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
)

// SessionEvent is published by the directory whenever a session changes.
type SessionEvent struct {
	Kind       SessionEventKind `json:"kind"`
	Session    *Session         `json:"session,omitempty"`
	SessionID  string           `json:"session_id"`
	UserID     string           `json:"user_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}
