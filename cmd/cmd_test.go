package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agribusiness-pro/apiserver/internal/mq"
	"github.com/agribusiness-pro/apiserver/types"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	john := map[string]any{
		"id": 1, "first_name": "John", "last_name": "Doe", "email": "test@example.com",
		"user_type": "farmer", "organization": "Doe Farms", "email_verified": true,
	}
	var signedIn atomic.Bool

	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		signedIn.Store(true)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok", "user": john})
	})
	r.Get("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !signedIn.Load() || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(john)
	})
	r.Post("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !signedIn.Load() || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok", "user": john})
	})
	r.Post("/api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		signedIn.Store(false)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"signed out"}`))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestSessionCommands(t *testing.T) {
	api := fakeAPI(t)
	t.Setenv("AGRIBIZ_API_URL", api.URL+"/api")
	t.Setenv("AGRIBIZ_CREDENTIALS", filepath.Join(t.TempDir(), "session.db"))
	t.Setenv("LOG_LEVEL", "error")

	assert.Equal(t, "redirect /login\n", run(t, "session", "route", "/dashboard"))
	assert.Equal(t, "Not signed in.\n", run(t, "session", "whoami"))

	assert.Equal(t, "Welcome back, John!\n", run(t, "session", "login", "--email", "test@example.com", "--password", "password123"))
	assert.Equal(t, "render dashboard\n", run(t, "session", "route", "/dashboard"))
	assert.Equal(t, "redirect /dashboard\n", run(t, "session", "route", "/login"))
	assert.Contains(t, run(t, "session", "whoami"), "John Doe <test@example.com> (verified)")
	assert.Equal(t, "Session refreshed.\n", run(t, "session", "refresh"))
	assert.Equal(t, "render profile\n", run(t, "session", "route", "/profile"))

	assert.Equal(t, "Signed out.\n", run(t, "session", "logout"))
	assert.Equal(t, "Not signed in.\n", run(t, "session", "whoami"))
	assert.Equal(t, "render home\n", run(t, "session", "route", "/"))
}

func TestVerificationHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := verificationHandler("http://localhost:5173/verify-email", zap.New(core))

	data, err := json.Marshal(types.VerificationEvent{UserID: 7, Email: "john@farm.com", FirstName: "John", Token: "abc"})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), mq.Message{ID: "1", Data: data}))

	entries := logs.FilterMessage("verification email").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "john@farm.com", fields["to"])
	assert.Equal(t, "http://localhost:5173/verify-email?token=abc", fields["link"])

	require.NoError(t, handler(context.Background(), mq.Message{ID: "2", Data: []byte("{broken")}))
	assert.Equal(t, 1, logs.FilterMessage("dropping malformed verification event").Len())
}
