package types

import (
	"strings"
	"time"
)

// UserType classifies the organisation a user signs up on behalf of.
type UserType string

// Supported user types.
const (
	UserTypeFarmer     UserType = "farmer"
	UserTypeFPO        UserType = "fpo"
	UserTypeCorporate  UserType = "corporate"
	UserTypeGovernment UserType = "government"
	UserTypeTrade      UserType = "trade"
	UserTypeEducation  UserType = "education"
)

// MaxBioLength is the maximum number of characters allowed in a profile bio.
const MaxBioLength = 500

// Valid reports whether t is one of the supported user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeFarmer, UserTypeFPO, UserTypeCorporate, UserTypeGovernment, UserTypeTrade, UserTypeEducation:
		return true
	default:
		return false
	}
}

// ParseUserType normalises raw input into a UserType. The boolean is false
// when the value is not a supported type.
func ParseUserType(raw string) (UserType, bool) {
	t := UserType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// User represents an account in the system.
// It contains identity, profile, verification state, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Email is the user's email address. It is used as the login
	// identifier and cannot be changed after registration.
	Email string `json:"email" db:"email"`

	// Phone is the user's contact phone number.
	Phone string `json:"phone" db:"phone"`

	// Organization is the company, cooperative, or institution the
	// user represents.
	Organization string `json:"organization" db:"organization"`

	// UserType is the stakeholder category of the account.
	UserType UserType `json:"user_type" db:"user_type"`

	// Location is a free-form region or address.
	Location string `json:"location" db:"location"`

	// Bio is a short self description, at most MaxBioLength characters.
	Bio string `json:"bio" db:"bio"`

	// AvatarKey is the object storage key of the profile picture, if any.
	AvatarKey string `json:"avatar_key,omitempty" db:"avatar_key"`

	// EmailVerified is set once the user confirms ownership of Email.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	// It doubles as the join date shown on profiles.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Profile returns the user-facing projection of u.
func (u User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Phone:         u.Phone,
		Organization:  u.Organization,
		UserType:      u.UserType,
		Location:      u.Location,
		JoinDate:      u.CreatedAt,
		Bio:           u.Bio,
		AvatarKey:     u.AvatarKey,
		EmailVerified: u.EmailVerified,
	}
}
