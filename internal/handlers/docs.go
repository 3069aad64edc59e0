package handlers

import "net/http"

type endpointDoc struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Auth        bool   `json:"auth"`
	Description string `json:"description"`
}

var apiDocs = []endpointDoc{
	{Method: http.MethodPost, Path: "/api/auth/register", Description: "Create an account and receive a session token"},
	{Method: http.MethodPost, Path: "/api/auth/login", Description: "Exchange email and password for a session token"},
	{Method: http.MethodPost, Path: "/api/auth/logout", Auth: true, Description: "Revoke the current session token"},
	{Method: http.MethodPost, Path: "/api/auth/refresh", Auth: true, Description: "Exchange the current session token for a fresh one"},
	{Method: http.MethodGet, Path: "/api/auth/me", Auth: true, Description: "Return the current user's profile"},
	{Method: http.MethodPost, Path: "/api/auth/verify-email", Description: "Confirm an email address with a verification token"},
	{Method: http.MethodPost, Path: "/api/auth/resend-verification", Description: "Send a fresh verification email"},
	{Method: http.MethodGet, Path: "/api/users/profile", Auth: true, Description: "Return the current user's profile"},
	{Method: http.MethodPut, Path: "/api/users/profile", Auth: true, Description: "Update profile fields other than email and password"},
	{Method: http.MethodGet, Path: "/api/users/profile/avatar", Auth: true, Description: "Download the current profile picture"},
	{Method: http.MethodPut, Path: "/api/users/profile/avatar", Auth: true, Description: "Upload a jpeg, png or webp profile picture (multipart field \"avatar\")"},
	{Method: http.MethodGet, Path: "/api/dashboard/stats", Auth: true, Description: "Business summary figures"},
	{Method: http.MethodGet, Path: "/api/dashboard/market-prices", Auth: true, Description: "Current commodity prices"},
	{Method: http.MethodGet, Path: "/api/dashboard/weather", Auth: true, Description: "Current weather and forecast"},
	{Method: http.MethodGet, Path: "/api/dashboard/activities", Auth: true, Description: "Recent account activity"},
	{Method: http.MethodGet, Path: "/api/health", Description: "Liveness check"},
}

// Docs lists the available endpoints.
func Docs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "AgriBusiness Pro API",
		"version":   "1.0.0",
		"endpoints": apiDocs,
	})
}
