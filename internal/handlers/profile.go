package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agribusiness-pro/apiserver/internal/services"
	"github.com/agribusiness-pro/apiserver/internal/store"
	"github.com/agribusiness-pro/apiserver/types"
)

const (
	avatarFormField    = "avatar"
	maxMultipartMemory = 8 << 20
)

// ProfileResponse is a profile plus a short-lived avatar download URL.
type ProfileResponse struct {
	types.Profile
	AvatarURL string `json:"avatar_url,omitempty"`
}

func newProfileResponse(ctx context.Context, users *services.UserService, user types.User) ProfileResponse {
	return ProfileResponse{
		Profile:   user.Profile(),
		AvatarURL: users.AvatarURL(ctx, user),
	}
}

// ProfileHandler serves the signed-in user's profile.
type ProfileHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

func NewProfileHandler(userService *services.UserService, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{userService: userService, logger: logger}
}

// ProfileRouter registers profile routes; every route requires auth.
func ProfileRouter(r chi.Router, handler *ProfileHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/profile", handler.GetProfile)
		r.Put("/profile", handler.UpdateProfile)
		r.Get("/profile/avatar", handler.GetAvatar)
		r.Put("/profile/avatar", handler.UploadAvatar)
	})
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(r.Context(), h.userService, user))
}

// UpdateProfile applies a partial update. Requests naming email or password
// are rejected.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var update types.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
			return
		}
		h.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(r.Context(), h.userService, user))
}

// UploadAvatar replaces the profile picture from a multipart upload.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAvatarBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(avatarFormField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, services.MaxAvatarBytes)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	user, err := h.userService.SetAvatar(r.Context(), userID, contentType, data)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
			return
		}
		h.logger.Error("failed to store avatar", zap.Int("user_id", userID), zap.Error(err))
		h.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(r.Context(), h.userService, user))
}

// GetAvatar streams the signed-in user's profile picture.
func (h *ProfileHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, contentType, err := h.userService.OpenAvatar(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoAvatar) {
			writeError(w, http.StatusNotFound, "no avatar uploaded")
			return
		}
		h.logger.Error("failed to open avatar", zap.Int("user_id", userID), zap.Error(err))
		h.writeLoadError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("failed to stream avatar", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (h *ProfileHandler) writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load profile")
}
