package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesm/chatview/internal/auth"
)

func newLoginCmd(st *cliState) *cobra.Command {
	var email, password, fullName string
	var signUp bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session for CLI commands",
		Long: `Sign in with email and password. Missing values are read
from standard input. The password may also come from
CHATVIEW_PASSWORD.

With --signup an account is created first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			if email == "" {
				email = prompt(in, out, "Email: ")
			}
			if password == "" {
				password = os.Getenv("CHATVIEW_PASSWORD")
			}
			if password == "" {
				password = prompt(in, out, "Password: ")
			}

			ctx := cmd.Context()
			if signUp {
				if fullName == "" {
					fullName = prompt(in, out, "Full name: ")
				}
				if err := auth.ValidateSignUp(email, password, fullName); err != nil {
					return errors.New(auth.Message(err))
				}
				res, err := a.provider.SignUp(ctx, email, password, fullName)
				if err != nil {
					return errors.New(auth.Message(err))
				}
				if res.NeedsConfirmation {
					fmt.Fprintln(out,
						"Check your email to confirm your account, then run chatview login.")
					return nil
				}
			}

			if err := auth.ValidateSignIn(email, password); err != nil {
				return errors.New(auth.Message(err))
			}
			session, err := auth.LoadSession(
				ctx, st.cfg.CredentialsPath(), a.provider,
			)
			if err != nil {
				return err
			}
			u, err := session.SignIn(ctx, email, password)
			if err != nil {
				var ae *auth.AuthError
				if errors.As(err, &ae) ||
					errors.Is(err, auth.ErrInvalidCredentials) ||
					errors.Is(err, auth.ErrEmailNotConfirmed) {
					return errors.New(auth.Message(err))
				}
				return fmt.Errorf("signing in: %w", err)
			}
			fmt.Fprintf(out, "Signed in as %s\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&fullName, "full-name", "", "Full name (with --signup)")
	cmd.Flags().BoolVar(&signUp, "signup", false, "Create the account first")
	return cmd
}

func newLogoutCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			session, err := auth.LoadSession(
				ctx, st.cfg.CredentialsPath(), a.provider,
			)
			if err != nil {
				return err
			}
			if _, ok := session.Current(); !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			if err := session.SignOut(ctx); err != nil {
				return fmt.Errorf("signing out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

// prompt writes label and reads one trimmed line.
func prompt(in *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
