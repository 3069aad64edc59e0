// Package session holds the signed-in state of one client application
// instance and reconciles it with the identity service.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/agribusiness-pro/apiserver/internal/credstore"
	"github.com/agribusiness-pro/apiserver/types"
)

const unreachableMessage = "Unable to reach the server. Please try again."

// State is a snapshot of the session.
type State struct {
	User            *types.Profile
	IsLoggedIn      bool
	IsEmailVerified bool
	IsInitialized   bool
}

// Result reports the outcome of a user-initiated operation.
type Result struct {
	Success bool
	Message string
}

// Session is the single source of truth for who is signed in. Construct one
// per application instance.
type Session struct {
	mu          sync.Mutex
	identity    Identity
	credentials *credstore.Store
	logger      *zap.Logger
	initOnce    sync.Once

	token         string
	user          *types.Profile
	emailVerified bool
	initialized   bool
}

func New(identity Identity, credentials *credstore.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{identity: identity, credentials: credentials, logger: logger}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Token returns the current session token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) snapshotLocked() State {
	st := State{
		IsLoggedIn:      s.token != "" && s.user != nil,
		IsEmailVerified: s.emailVerified,
		IsInitialized:   s.initialized,
	}
	if s.user != nil {
		user := *s.user
		st.User = &user
	}
	return st
}

// Initialize validates a stored credential against the identity service.
// It runs at most once; every failure leaves an initialized, signed-out
// session.
func (s *Session) Initialize(ctx context.Context) State {
	s.initOnce.Do(func() {
		s.verify(ctx)
	})
	return s.State()
}

func (s *Session) verify(ctx context.Context) {
	record, ok := s.credentials.Read(ctx)
	if !ok {
		// covers corrupt snapshots as well as a clean store
		if err := s.credentials.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear credential store", zap.Error(err))
		}
		s.mu.Lock()
		s.resetLocked()
		s.initialized = true
		s.mu.Unlock()
		return
	}

	profile, err := s.identity.CurrentUser(ctx, record.Token)
	if err != nil {
		s.logger.Info("stored session is no longer valid", zap.Error(err))
		if err := s.credentials.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear credential store", zap.Error(err))
		}
		s.mu.Lock()
		s.resetLocked()
		s.initialized = true
		s.mu.Unlock()
		return
	}

	if err := s.credentials.Write(ctx, record.Token, profile); err != nil {
		s.logger.Warn("failed to refresh cached profile", zap.Error(err))
	}
	s.mu.Lock()
	s.setLocked(record.Token, profile, profile.EmailVerified)
	s.initialized = true
	s.mu.Unlock()
}

// Login signs in with email and password. State is untouched on failure.
func (s *Session) Login(ctx context.Context, email, password string) Result {
	auth, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return s.failure("login failed", err)
	}
	if err := s.credentials.Write(ctx, auth.Token, auth.User); err != nil {
		s.logger.Warn("failed to persist session", zap.Error(err))
	}

	s.mu.Lock()
	s.setLocked(auth.Token, auth.User, auth.User.EmailVerified)
	s.mu.Unlock()
	return Result{Success: true, Message: "Welcome back, " + auth.User.FirstName + "!"}
}

// Register creates an account and signs it in. The new session always
// starts unverified, whatever the service reports.
func (s *Session) Register(ctx context.Context, in RegisterInput) Result {
	auth, err := s.identity.SignUp(ctx, in)
	if err != nil {
		return s.failure("registration failed", err)
	}
	if auth.Token == "" {
		return Result{Success: true, Message: "Account created. Check your email to verify your address, then sign in."}
	}

	if err := s.credentials.Write(ctx, auth.Token, auth.User); err != nil {
		s.logger.Warn("failed to persist session", zap.Error(err))
	}
	s.mu.Lock()
	s.setLocked(auth.Token, auth.User, false)
	s.mu.Unlock()
	return Result{Success: true, Message: "Account created. Check your email to verify your address."}
}

// Logout revokes the token remotely when possible and always clears the
// local session. Calling it while signed out does nothing.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token != "" {
		if err := s.identity.SignOut(ctx, token); err != nil {
			s.logger.Warn("remote sign out failed", zap.Error(err))
		}
	}
	if err := s.credentials.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear credential store", zap.Error(err))
	}

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// ConfirmEmail submits a verification token. Only the profile re-read from
// the identity service afterwards can mark the session verified.
func (s *Session) ConfirmEmail(ctx context.Context, verificationToken string) Result {
	if err := s.identity.ConfirmEmail(ctx, verificationToken); err != nil {
		return s.failure("email verification failed", err)
	}

	token := s.Token()
	if token == "" {
		return Result{Success: true, Message: "Email verified. You can now sign in."}
	}

	profile, err := s.identity.CurrentUser(ctx, token)
	if err != nil {
		// The token is spent either way; the stored credential is kept so the
		// next Initialize picks up the verified profile.
		s.logger.Warn("reload profile after verification", zap.Error(err))
		return Result{Success: true, Message: "Email verified. Reload to continue."}
	}
	if err := s.credentials.Write(ctx, token, profile); err != nil {
		s.logger.Warn("failed to persist session", zap.Error(err))
	}

	s.mu.Lock()
	if s.token == token {
		s.setLocked(token, profile, profile.EmailVerified)
	}
	s.mu.Unlock()
	return Result{Success: true, Message: "Email verified."}
}

// Refresh swaps the session token for a fresh one. A rejected refresh means
// the token is no longer valid, so the session is signed out.
func (s *Session) Refresh(ctx context.Context) Result {
	token := s.Token()
	if token == "" {
		return Result{Success: false, Message: "You must be signed in to refresh your session."}
	}

	auth, err := s.identity.Refresh(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			if err := s.credentials.Clear(ctx); err != nil {
				s.logger.Warn("failed to clear credential store", zap.Error(err))
			}
			s.mu.Lock()
			if s.token == token {
				s.resetLocked()
			}
			s.mu.Unlock()
		}
		return s.failure("session refresh failed", err)
	}
	if err := s.credentials.Write(ctx, auth.Token, auth.User); err != nil {
		s.logger.Warn("failed to persist session", zap.Error(err))
	}

	s.mu.Lock()
	if s.token == token {
		s.setLocked(auth.Token, auth.User, auth.User.EmailVerified)
	}
	s.mu.Unlock()
	return Result{Success: true, Message: "Session refreshed."}
}

// UpdateProfile saves profile changes and adopts the returned profile.
func (s *Session) UpdateProfile(ctx context.Context, update types.ProfileUpdate) Result {
	token := s.Token()
	if token == "" {
		return Result{Success: false, Message: "You must be signed in to update your profile."}
	}

	profile, err := s.identity.UpdateProfile(ctx, token, update)
	if err != nil {
		return s.failure("profile update failed", err)
	}
	if err := s.credentials.Write(ctx, token, profile); err != nil {
		s.logger.Warn("failed to persist session", zap.Error(err))
	}

	s.mu.Lock()
	if s.token == token {
		s.setLocked(token, profile, s.emailVerified)
	}
	s.mu.Unlock()
	return Result{Success: true, Message: "Profile updated."}
}

// ResendVerification asks for another verification email for the signed-in
// account.
func (s *Session) ResendVerification(ctx context.Context) Result {
	st := s.State()
	if !st.IsLoggedIn {
		return Result{Success: false, Message: "You must be signed in to resend the verification email."}
	}
	if st.IsEmailVerified {
		return Result{Success: true, Message: "Your email is already verified."}
	}
	if err := s.identity.ResendVerification(ctx, st.User.Email); err != nil {
		return s.failure("resend verification failed", err)
	}
	return Result{Success: true, Message: "Verification email sent to " + st.User.Email + "."}
}

func (s *Session) failure(op string, err error) Result {
	if errors.Is(err, ErrRejected) {
		s.logger.Info(op, zap.Error(err))
		return Result{Success: false, Message: err.Error()}
	}
	s.logger.Warn(op, zap.Error(err))
	return Result{Success: false, Message: unreachableMessage}
}

func (s *Session) setLocked(token string, profile types.Profile, verified bool) {
	s.token = token
	s.user = &profile
	s.emailVerified = verified
}

func (s *Session) resetLocked() {
	s.token = ""
	s.user = nil
	s.emailVerified = false
}
