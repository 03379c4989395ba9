package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/bookingwatch/internal/model"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session in the system keyring",
		Long: `Sign in to the marketplace. Missing credentials are asked for
interactively.

Example:
  bookingwatch login
  bookingwatch login --email bob@example.com --password secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Email == "" || opts.Password == "" {
				if err := credentialsForm(&opts.Email, &opts.Password).Run(); err != nil {
					return WrapExitError(ExitCommandError, "reading credentials", err)
				}
			}

			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.Login(ctx, strings.TrimSpace(opts.Email), opts.Password)
			if err != nil {
				return classify("logging in", err)
			}

			return opts.formatter(cmd.OutOrStdout()).Success(sess.Public(),
				fmt.Sprintf("Logged in as %s (%s).", displayName(sess), roleName(sess.Role)))
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")

	return cmd
}

func credentialsForm(email, password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(email).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(validateRequired("Password")),
		),
	)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Logout(ctx); err != nil {
				return WrapExitError(ExitFailure, "logging out", err)
			}
			return rootOpts.formatter(cmd.OutOrStdout()).Success(nil, "Logged out.")
		},
	}
}

func displayName(sess *model.Session) string {
	if sess.FullName != "" {
		return sess.FullName
	}
	return sess.Email
}

func roleName(r model.Role) string {
	switch r {
	case model.RoleProvider:
		return "provider"
	case model.RoleCustomer:
		return "customer"
	case model.RoleAdmin:
		return "admin"
	}
	return string(r)
}
