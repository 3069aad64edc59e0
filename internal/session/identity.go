package session

import (
	"context"
	"errors"

	"github.com/agribusiness-pro/apiserver/types"
)

// ErrRejected marks identity service errors that reject the request itself
// (bad credentials, expired token, invalid input) as opposed to transport
// failures.
var ErrRejected = errors.New("rejected by identity service")

// Identity is the remote identity and profile service.
type Identity interface {
	SignIn(ctx context.Context, email, password string) (Auth, error)
	SignUp(ctx context.Context, in RegisterInput) (Auth, error)
	SignOut(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (Auth, error)
	CurrentUser(ctx context.Context, token string) (types.Profile, error)
	ConfirmEmail(ctx context.Context, verificationToken string) error
	ResendVerification(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, token string, update types.ProfileUpdate) (types.Profile, error)
}

// Auth is a signed-in session returned by the identity service.
type Auth struct {
	Token string
	User  types.Profile
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	UserType     string `json:"user_type"`
	Location     string `json:"location"`
}
