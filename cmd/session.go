/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agribusiness-pro/apiserver/internal/credstore"
	"github.com/agribusiness-pro/apiserver/internal/gate"
	"github.com/agribusiness-pro/apiserver/internal/identity"
	"github.com/agribusiness-pro/apiserver/internal/session"
	"github.com/agribusiness-pro/apiserver/types"
)

var (
	loginEmail    string
	loginPassword string
	registerInput session.RegisterInput
	profileFlags  struct {
		firstName, lastName, phone, organization, userType, location, bio string
	}
)

// sessionCmd groups the client commands. Each invocation restores the
// stored session before running.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Sign in to the API and inspect the stored session",
}

var sessionLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session.Session, _ []string) error {
		password, err := resolvePassword(cmd, loginPassword)
		if err != nil {
			return err
		}
		return printResult(cmd, s.Login(ctx, loginEmail, password))
	}),
}

var sessionRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session.Session, _ []string) error {
		password, err := resolvePassword(cmd, registerInput.Password)
		if err != nil {
			return err
		}
		in := registerInput
		in.Password = password
		return printResult(cmd, s.Register(ctx, in))
	}),
}

var sessionLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session.Session, _ []string) error {
		s.Logout(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	}),
}

var sessionRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the stored session token for a fresh one",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session.Session, _ []string) error {
		return printResult(cmd, s.Refresh(ctx))
	}),
}

var sessionWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: withSession(func(_ context.Context, cmd *cobra.Command, s *session.Session, _ []string) error {
		printState(cmd.OutOrStdout(), s.State())
		return nil
	}),
}

var sessionVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Confirm your email address with the token from the verification email",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session.Session, args []string) error {
		return printResult(cmd, s.ConfirmEmail(ctx, args[0]))
	}),
}

var sessionResendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Send another verification email",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session.Session, _ []string) error {
		return printResult(cmd, s.ResendVerification(ctx))
	}),
}

var sessionProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update profile fields (email and password cannot be changed here)",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session.Session, _ []string) error {
		update := types.ProfileUpdate{}
		flags := cmd.Flags()
		set := func(name string, value string, dst **string) {
			if flags.Changed(name) {
				v := value
				*dst = &v
			}
		}
		set("first-name", profileFlags.firstName, &update.FirstName)
		set("last-name", profileFlags.lastName, &update.LastName)
		set("phone", profileFlags.phone, &update.Phone)
		set("organization", profileFlags.organization, &update.Organization)
		set("user-type", profileFlags.userType, &update.UserType)
		set("location", profileFlags.location, &update.Location)
		set("bio", profileFlags.bio, &update.Bio)
		if update.Empty() {
			return errors.New("no profile fields given")
		}
		return printResult(cmd, s.UpdateProfile(ctx, update))
	}),
}

var sessionRouteCmd = &cobra.Command{
	Use:   "route <path>",
	Short: "Show what the app would render for a path in the current session",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(_ context.Context, cmd *cobra.Command, s *session.Session, args []string) error {
		d := gate.Resolve(args[0], s.State())
		switch d.Kind {
		case gate.Redirect:
			fmt.Fprintf(cmd.OutOrStdout(), "redirect %s\n", d.Location)
		case gate.Render:
			fmt.Fprintf(cmd.OutOrStdout(), "render %s\n", d.Page)
		default:
			fmt.Fprintln(cmd.OutOrStdout(), d.Kind)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(
		sessionLoginCmd,
		sessionRegisterCmd,
		sessionLogoutCmd,
		sessionRefreshCmd,
		sessionWhoamiCmd,
		sessionVerifyCmd,
		sessionResendCmd,
		sessionProfileCmd,
		sessionRouteCmd,
	)

	sessionLoginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	sessionLoginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when omitted)")
	_ = sessionLoginCmd.MarkFlagRequired("email")

	rf := sessionRegisterCmd.Flags()
	rf.StringVar(&registerInput.FirstName, "first-name", "", "first name")
	rf.StringVar(&registerInput.LastName, "last-name", "", "last name")
	rf.StringVar(&registerInput.Email, "email", "", "email address")
	rf.StringVar(&registerInput.Password, "password", "", "password (prompted when omitted)")
	rf.StringVar(&registerInput.Phone, "phone", "", "phone number")
	rf.StringVar(&registerInput.Organization, "organization", "", "organization name")
	rf.StringVar(&registerInput.UserType, "user-type", "farmer", "farmer, fpo, corporate, government, trade or education")
	rf.StringVar(&registerInput.Location, "location", "", "city or region")
	for _, name := range []string{"first-name", "last-name", "email"} {
		_ = sessionRegisterCmd.MarkFlagRequired(name)
	}

	pf := sessionProfileCmd.Flags()
	pf.StringVar(&profileFlags.firstName, "first-name", "", "first name")
	pf.StringVar(&profileFlags.lastName, "last-name", "", "last name")
	pf.StringVar(&profileFlags.phone, "phone", "", "phone number")
	pf.StringVar(&profileFlags.organization, "organization", "", "organization name")
	pf.StringVar(&profileFlags.userType, "user-type", "", "farmer, fpo, corporate, government, trade or education")
	pf.StringVar(&profileFlags.location, "location", "", "city or region")
	pf.StringVar(&profileFlags.bio, "bio", "", "short bio, at most 500 characters")
}

type sessionRunFunc func(ctx context.Context, cmd *cobra.Command, s *session.Session, args []string) error

// withSession opens the credential store, restores the session and runs fn.
func withSession(fn sessionRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := credstore.OpenSQLite(ctx, cfg.Client.CredentialPath)
		if err != nil {
			return fmt.Errorf("open credential store: %w", err)
		}
		defer backend.Close()

		client := identity.New(cfg.Client.APIURL, cfg.Client.Timeout)
		s := session.New(client, credstore.New(backend), logger.Named("session"))
		s.Initialize(ctx)

		return fn(ctx, cmd, s, args)
	}
}

func resolvePassword(cmd *cobra.Command, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func printResult(cmd *cobra.Command, res session.Result) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

func printState(w io.Writer, st session.State) {
	if !st.IsLoggedIn || st.User == nil {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	u := st.User
	verified := "unverified"
	if st.IsEmailVerified {
		verified = "verified"
	}
	fmt.Fprintf(w, "%s <%s> (%s)\n", u.FullName(), u.Email, verified)
	details := []string{string(u.UserType)}
	if u.Organization != "" {
		details = append(details, u.Organization)
	}
	if u.Location != "" {
		details = append(details, u.Location)
	}
	fmt.Fprintln(w, strings.Join(details, " · "))
	if !u.JoinDate.IsZero() {
		fmt.Fprintf(w, "Member since %s\n", u.JoinDate.Format("January 2006"))
	}
}
