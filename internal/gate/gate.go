// Package gate decides what a client renders for a path given the session
// state.
package gate

import (
	"strings"

	"github.com/agribusiness-pro/apiserver/internal/session"
)

// Kind is the type of routing decision.
type Kind int

const (
	Loading Kind = iota
	Render
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Page identifies a renderable page.
type Page string

const (
	PageHome           Page = "home"
	PageDashboard      Page = "dashboard"
	PageVerifyPrompt   Page = "verify-email-prompt"
	PageProfile        Page = "profile"
	PageShop           Page = "shop"
	PageCart           Page = "cart"
	PageCheckout       Page = "checkout"
	PageLogin          Page = "login"
	PageRegister       Page = "register"
	PageForgotPassword Page = "forgot-password"
	PageVerifyEmail    Page = "verify-email"
	PageResetPassword  Page = "reset-password"
	PageNotFound       Page = "not-found"
)

// Decision is the outcome of Resolve. Page is set for Render, Location for
// Redirect.
type Decision struct {
	Kind     Kind
	Page     Page
	Location string
}

// AuthState classifies a session for routing.
type AuthState int

const (
	Uninitialized AuthState = iota
	Unauthenticated
	AuthenticatedUnverified
	AuthenticatedVerified
)

func Classify(st session.State) AuthState {
	switch {
	case !st.IsInitialized:
		return Uninitialized
	case !st.IsLoggedIn:
		return Unauthenticated
	case !st.IsEmailVerified:
		return AuthenticatedUnverified
	default:
		return AuthenticatedVerified
	}
}

var protected = map[string]Page{
	"/dashboard": PageDashboard,
	"/profile":   PageProfile,
	"/shop":      PageShop,
	"/cart":      PageCart,
	"/checkout":  PageCheckout,
}

var guestOnly = map[string]Page{
	"/login":           PageLogin,
	"/register":        PageRegister,
	"/forgot-password": PageForgotPassword,
}

func render(p Page) Decision {
	return Decision{Kind: Render, Page: p}
}

func redirect(to string) Decision {
	return Decision{Kind: Redirect, Location: to}
}

// Resolve maps a requested path and session state to a decision. Signed-in
// users whose email is unverified see the verification prompt instead of
// any protected page.
func Resolve(path string, st session.State) Decision {
	state := Classify(st)
	if state == Uninitialized {
		return Decision{Kind: Loading}
	}

	path = Normalize(path)
	switch {
	case path == "/":
		switch state {
		case Unauthenticated:
			return render(PageHome)
		case AuthenticatedUnverified:
			return render(PageVerifyPrompt)
		default:
			return render(PageDashboard)
		}

	case protected[path] != "":
		switch state {
		case Unauthenticated:
			return redirect("/login")
		case AuthenticatedUnverified:
			return render(PageVerifyPrompt)
		default:
			return render(protected[path])
		}

	case guestOnly[path] != "":
		if state == Unauthenticated {
			return render(guestOnly[path])
		}
		return redirect("/dashboard")

	case path == "/verify-email":
		if state == AuthenticatedVerified {
			return redirect("/dashboard")
		}
		return render(PageVerifyEmail)

	case path == "/reset-password":
		return render(PageResetPassword)
	}

	return render(PageNotFound)
}

// Normalize drops the query and fragment and any trailing slash.
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
