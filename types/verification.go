package types

import "time"

// EmailVerification is a single-use token proving ownership of an email address.
type EmailVerification struct {
	// Token is the opaque value embedded in the verification link.
	Token string `json:"token" db:"token"`

	// UserID identifies the account being verified.
	UserID int `json:"user_id" db:"user_id"`

	// ExpiresAt is the instant after which the token is rejected.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// ConsumedAt is set when the token has been used.
	ConsumedAt *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`

	// CreatedAt is the timestamp when the token was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// VerificationEvent is published when a verification email must be sent.
type VerificationEvent struct {
	UserID    int    `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Token     string `json:"token"`
}
