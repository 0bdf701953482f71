package transport

import (
	"encoding/json"
	"time"

	"github.com/lexdesk/officeauth/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// SessionResponse hands a token pair to the client.
type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func NewSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		SessionID:    s.ID,
		UserID:       s.UserID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    s.ExpiresAt,
	}
}

// MeResponse is the resolved view of the caller.
type MeResponse struct {
	User        *domain.SessionUser       `json:"user"`
	Profile     *domain.Profile           `json:"profile"`
	Office      *domain.Office            `json:"office,omitempty"`
	OfficeUser  *domain.OfficeUser        `json:"office_user,omitempty"`
	Permissions domain.FeaturePermissions `json:"permissions"`
	FirstLogin  bool                      `json:"first_login"`
	Degraded    bool                      `json:"degraded"`
}

type PaymentStatusResponse struct {
	Result           domain.PaymentValidationResult `json:"result"`
	ShowPaymentModal bool                           `json:"show_payment_modal"`
}
