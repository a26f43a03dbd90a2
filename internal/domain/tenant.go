package domain

import "time"

// Tenant is a business account; BusinessID is the isolation key for reviews.
type Tenant struct {
	BusinessID   string
	PasswordHash string
}

type Session struct {
	Token      string    `json:"token"`
	BusinessID string    `json:"business_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}
