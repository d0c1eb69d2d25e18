package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the session of the current context",
	}
	authCmd.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newProfileCmd(a),
	)
	return authCmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if email == "" {
				if email, err = a.prompt(cmd, "Email: "); err != nil {
					return err
				}
			}
			password, err := a.promptPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			user, err := api.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s) in context %q.\n", user.Email, role(user), a.cfg.CurrentContext)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		reg    domain.Registration
		seller bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in with it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if reg.Email == "" {
				if reg.Email, err = a.prompt(cmd, "Email: "); err != nil {
					return err
				}
			}
			if reg.Username == "" {
				reg.Username = reg.Email
			}
			if reg.Password, err = a.promptPassword(cmd, "Password: "); err != nil {
				return err
			}
			if reg.PasswordConfirm, err = a.promptPassword(cmd, "Confirm password: "); err != nil {
				return err
			}

			register := api.Register
			if seller {
				register = api.RegisterSeller
			}
			user, err := register(cmd.Context(), reg)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s (%s).\n", user.Email, role(user))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.Email, "email", "", "account email (prompted when empty)")
	f.StringVar(&reg.Username, "username", "", "username (defaults to the email)")
	f.StringVar(&reg.FirstName, "first-name", "", "first name")
	f.StringVar(&reg.LastName, "last-name", "", "last name")
	f.StringVar(&reg.Phone, "phone", "", "phone number")
	f.StringVar(&reg.Address, "address", "", "postal address")
	f.BoolVar(&seller, "seller", false, "register a seller account")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := api.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out of context %q.\n", a.cfg.CurrentContext)
			return nil
		},
	}
}

type sessionStatus struct {
	Context       string       `json:"context" yaml:"context"`
	LoggedIn      bool         `json:"logged_in" yaml:"logged_in"`
	User          *domain.User `json:"user,omitempty" yaml:"user,omitempty"`
	AccessExpires *time.Time   `json:"access_expires,omitempty" yaml:"access_expires,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved session without contacting the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			sess, err := api.Session(cmd.Context())
			if err != nil {
				return err
			}

			st := sessionStatus{Context: a.cfg.CurrentContext, LoggedIn: sess.Authenticated()}
			if st.LoggedIn {
				st.User = sess.User
				st.AccessExpires = accessExpiry(sess.Tokens.Access)
			}

			return a.render(cmd, st, func(w io.Writer) {
				row(w, "CONTEXT", st.Context)
				if !st.LoggedIn {
					row(w, "STATUS", "logged out")
					return
				}
				row(w, "STATUS", "logged in")
				row(w, "USER", st.User.Email)
				row(w, "NAME", st.User.FullName())
				row(w, "ROLE", role(st.User))
				if st.AccessExpires != nil {
					row(w, "ACCESS EXPIRES", st.AccessExpires.Local().Format(time.RFC3339))
				}
			})
		},
	}
}

// accessExpiry reads the exp claim of a JWT access token. The signature is
// not checked; the value is informational only. Opaque tokens yield nil.
func accessExpiry(token string) *time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return nil
	}
	exp := claims.ExpiresAt.Time
	return &exp
}

func newProfileCmd(a *app) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile of the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			user, err := api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return a.renderUser(cmd, user)
		},
	}

	var username, firstName, lastName, phone, address string
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields; only the given flags are changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update domain.ProfileUpdate
			f := cmd.Flags()
			for name, dst := range map[string]struct {
				value string
				field **string
			}{
				"username":   {username, &update.Username},
				"first-name": {firstName, &update.FirstName},
				"last-name":  {lastName, &update.LastName},
				"phone":      {phone, &update.Phone},
				"address":    {address, &update.Address},
			} {
				if f.Changed(name) {
					v := dst.value
					*dst.field = &v
				}
			}
			if update == (domain.ProfileUpdate{}) {
				return errors.New("nothing to update, pass at least one field flag")
			}

			api, err := a.client(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			user, err := api.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			return a.renderUser(cmd, user)
		},
	}
	f := updateCmd.Flags()
	f.StringVar(&username, "username", "", "new username")
	f.StringVar(&firstName, "first-name", "", "new first name")
	f.StringVar(&lastName, "last-name", "", "new last name")
	f.StringVar(&phone, "phone", "", "new phone number")
	f.StringVar(&address, "address", "", "new postal address")

	profileCmd.AddCommand(updateCmd)
	return profileCmd
}

func (a *app) renderUser(cmd *cobra.Command, user *domain.User) error {
	return a.render(cmd, user, func(w io.Writer) {
		row(w, "ID", user.ID)
		row(w, "EMAIL", user.Email)
		row(w, "USERNAME", user.Username)
		row(w, "NAME", user.FullName())
		row(w, "ROLE", role(user))
		row(w, "PHONE", user.Phone)
		row(w, "ADDRESS", user.Address)
	})
}

func role(u *domain.User) string {
	if u.IsSeller {
		return "seller"
	}
	return "buyer"
}
