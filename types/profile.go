package types

import "time"

// Profile is the identity record exposed to clients. It is owned by the
// API server and mirrored read-through by client sessions.
type Profile struct {
	ID            int       `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Organization  string    `json:"organization"`
	UserType      UserType  `json:"user_type"`
	Location      string    `json:"location"`
	JoinDate      time.Time `json:"join_date"`
	Bio           string    `json:"bio"`
	AvatarKey     string    `json:"avatar_key,omitempty"`
	EmailVerified bool      `json:"email_verified"`
}

// FullName joins the first and last name.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left
// untouched. Email and password are deliberately absent.
type ProfileUpdate struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Organization *string `json:"organization,omitempty"`
	UserType     *string `json:"user_type,omitempty"`
	Location     *string `json:"location,omitempty"`
	Bio          *string `json:"bio,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Phone == nil &&
		u.Organization == nil && u.UserType == nil && u.Location == nil && u.Bio == nil
}
