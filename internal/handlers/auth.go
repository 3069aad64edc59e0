package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agribusiness-pro/apiserver/internal/services"
	"github.com/agribusiness-pro/apiserver/internal/store"
	"github.com/agribusiness-pro/apiserver/internal/tokens"
	"github.com/agribusiness-pro/apiserver/types"
)

// Revocations tracks signed-out tokens.
type Revocations interface {
	Revoke(ctx context.Context, claims tokens.Claims) error
	// Verify returns tokens.ErrRevoked for a signed-out token.
	Verify(ctx context.Context, claims tokens.Claims) error
}

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	userService *services.UserService
	issuer      *tokens.Issuer
	revocations Revocations
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, issuer *tokens.Issuer, revocations Revocations, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		userService: userService,
		issuer:      issuer,
		revocations: revocations,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router. credentialLimit
// applies only to the endpoints that accept credentials or verification
// tokens, not to the session endpoints behind RequireAuth.
func AuthRouter(r chi.Router, handler *AuthHandler, credentialLimit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if credentialLimit != nil {
			r.Use(credentialLimit)
		}
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
		r.Post("/verify-email", handler.VerifyEmail)
		r.Post("/resend-verification", handler.ResendVerification)
	})
	r.Group(func(r chi.Router) {
		r.Use(handler.RequireAuth)
		r.Post("/logout", handler.Logout)
		r.Post("/refresh", handler.Refresh)
		r.Get("/me", handler.Me)
	})
}

// RequireAuth enforces JWT authentication and injects the claims into context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := h.issuer.Parse(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if h.revocations != nil {
			if err := h.revocations.Verify(r.Context(), claims); err != nil {
				if errors.Is(err, tokens.ErrRevoked) {
					writeError(w, http.StatusUnauthorized, "session has been signed out")
					return
				}
				h.logger.Error("failed to check token revocation", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "failed to verify session")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// Register creates a new, unverified account and returns a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Password:     req.Password,
		Phone:        req.Phone,
		Organization: req.Organization,
		UserType:     req.UserType,
		Location:     req.Location,
	})
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
		case errors.Is(err, services.ErrEmailTaken):
			writeError(w, http.StatusConflict, "an account with this email already exists")
		default:
			h.logger.Error("failed to register user", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	h.writeSession(w, r, http.StatusCreated, user)
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("failed to authenticate", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	h.writeSession(w, r, http.StatusOK, user)
}

// Logout revokes the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.revocations != nil {
		if err := h.revocations.Revoke(r.Context(), claims); err != nil {
			h.logger.Error("failed to revoke token", zap.Int("user_id", claims.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to sign out")
			return
		}
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "signed out"})
}

// Refresh exchanges the presented token for a new one and revokes the old.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.logger.Error("failed to load user for refresh", zap.Int("user_id", claims.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	if h.revocations != nil {
		if err := h.revocations.Revoke(r.Context(), claims); err != nil {
			h.logger.Error("failed to revoke refreshed token", zap.Int("user_id", claims.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to refresh session")
			return
		}
	}

	h.writeSession(w, r, http.StatusOK, user)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, newProfileResponse(r.Context(), h.userService, user))
}

// VerifyEmail consumes a verification token.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, services.ErrInvalidVerificationToken) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to verify email", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to verify email")
		return
	}

	writeJSON(w, http.StatusOK, newProfileResponse(r.Context(), h.userService, user))
}

// ResendVerification queues a new verification email. The response does not
// reveal whether the address belongs to an account.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.userService.ResendVerification(r.Context(), req.Email); err != nil {
		h.logger.Error("failed to resend verification", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resend verification email")
		return
	}

	writeJSON(w, http.StatusAccepted, MessageResponse{Message: "if the account exists and is unverified, a verification email has been sent"})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, claims, err := h.issuer.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Int("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, status, AuthResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Unix(),
		User:      newProfileResponse(r.Context(), h.userService, user),
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("missing bearer token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

type RegisterRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	UserType     string `json:"user_type"`
	Location     string `json:"location"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt int64           `json:"expires_at"`
	User      ProfileResponse `json:"user"`
}
