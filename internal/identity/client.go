// Package identity is the HTTP client for the AgriBusiness Pro API's auth
// and profile endpoints.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/agribusiness-pro/apiserver/internal/session"
	"github.com/agribusiness-pro/apiserver/types"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Unwrap reports client errors as rejections; server errors are not.
func (e *APIError) Unwrap() error {
	if e.Status >= 400 && e.Status < 500 {
		return session.ErrRejected
	}
	return nil
}

// IsRejected reports whether err is the API refusing the request, as
// opposed to a transport or server failure.
func IsRejected(err error) bool {
	return errors.Is(err, session.ErrRejected)
}

// Client implements session.Identity over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ session.Identity = (*Client)(nil)

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type authResponse struct {
	Token string        `json:"token"`
	User  types.Profile `json:"user"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (session.Auth, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return session.Auth{}, err
	}
	return session.Auth{Token: out.Token, User: out.User}, nil
}

func (c *Client) SignUp(ctx context.Context, in session.RegisterInput) (session.Auth, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", in, &out); err != nil {
		return session.Auth{}, err
	}
	return session.Auth{Token: out.Token, User: out.User}, nil
}

func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) Refresh(ctx context.Context, token string) (session.Auth, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", token, nil, &out); err != nil {
		return session.Auth{}, err
	}
	return session.Auth{Token: out.Token, User: out.User}, nil
}

func (c *Client) CurrentUser(ctx context.Context, token string) (types.Profile, error) {
	var profile types.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &profile); err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

func (c *Client) ConfirmEmail(ctx context.Context, verificationToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-email", "", map[string]string{"token": verificationToken}, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/resend-verification", "", map[string]string{"email": email}, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, token string, update types.ProfileUpdate) (types.Profile, error) {
	var profile types.Profile
	if err := c.do(ctx, http.MethodPut, "/users/profile", token, update, &profile); err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Fields = payload.Fields
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
