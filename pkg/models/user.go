package models

import "time"

// Session is the client's belief about who is signed in
type Session struct {
	Identity  string    `json:"identity" yaml:"identity"`
	ExpiresAt time.Time `json:"expiresAt" yaml:"expiresAt"`
	// Token is the signed cookie value the identity was derived from
	Token string `json:"token,omitempty" yaml:"-"`
}

// Valid reports whether the session names a user and has not expired at now.
// A zero ExpiresAt never expires.
func (s Session) Valid(now time.Time) bool {
	if s.Identity == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response payload
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
