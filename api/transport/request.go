package transport

import "strings"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (r RegisterRequest) Valid() bool {
	return strings.TrimSpace(r.Email) != "" && r.Password != ""
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Valid() bool {
	return strings.TrimSpace(r.Email) != "" && r.Password != ""
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
