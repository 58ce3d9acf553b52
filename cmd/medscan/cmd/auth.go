package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/medscan-console/internal/viewmodel"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginEmail    string
	loginPassword string

	registerName  string
	registerEmail string
)

var stdin = bufio.NewReader(os.Stdin)

// prompt reads a line, or the value of an already set flag
func prompt(label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(os.Stderr, label+": ")
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label, "")
	}
	fmt.Fprint(os.Stderr, label+": ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := prompt("Email", loginEmail)
		if err != nil {
			return err
		}
		password := loginPassword
		if password == "" {
			if password, err = promptSecret("Password"); err != nil {
				return err
			}
		}

		form := viewmodel.NewLoginForm(console.client.Auth, console.deps)
		if err := form.Submit(cmd.Context(), email, password); err != nil {
			return screenError(err, form.Snapshot().Error)
		}
		console.out.printf("Welcome back, %s\n", console.store.User().DisplayName("doctor"))
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in viewmodel.RegisterInput
		var err error
		if in.FullName, err = prompt("Full name", registerName); err != nil {
			return err
		}
		if in.Email, err = prompt("Email", registerEmail); err != nil {
			return err
		}
		if in.Password, err = promptSecret("Password"); err != nil {
			return err
		}
		if in.ConfirmPassword, err = promptSecret("Confirm password"); err != nil {
			return err
		}

		form := viewmodel.NewRegisterForm(console.client.Auth, console.deps)
		if err := form.Submit(cmd.Context(), in); err != nil {
			return screenError(err, form.Snapshot().Error)
		}
		console.out.printf("Account created for %s\n", in.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viewmodel.Logout(cmd.Context(), console.client.Auth, console.deps); err != nil {
			return screenError(err, "Failed to sign out")
		}
		console.out.printf("Signed out\n")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !console.store.IsAuthenticated() {
			console.deps.Navigator.Navigate(viewmodel.RouteLogin)
			return nil
		}
		user, err := console.client.Auth.Me(cmd.Context())
		if err != nil {
			return screenError(err, "")
		}
		console.out.field("Name", user.FullName)
		console.out.field("Email", user.Email)
		console.out.field("Role", user.Role)
		console.out.field("Backend", console.client.BaseURL())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")

	registerCmd.Flags().StringVar(&registerName, "name", "", "Full name")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Account email")
}
