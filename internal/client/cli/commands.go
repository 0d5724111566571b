package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophauth/internal/client/storage"
	"github.com/iudanet/gophauth/pkg/api"
)

func (c *Cli) registerCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := c.readValue(email, "Email: ")
			if err != nil {
				return err
			}
			password, err := c.readPassword("Password: ", true)
			if err != nil {
				return err
			}

			data, err := c.authService.Register(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			c.io.Println("✓ Registration successful!")
			c.printSession(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")

	return cmd
}

func (c *Cli) loginCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := c.readValue(email, "Email: ")
			if err != nil {
				return err
			}
			password, err := c.readPassword("Password: ", false)
			if err != nil {
				return err
			}

			data, err := c.authService.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			c.io.Println("✓ Login successful!")
			c.printSession(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")

	return cmd
}

func (c *Cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the local session on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.authService.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			c.io.Println("✓ Logged out. Your local session has been deleted.")
			return nil
		},
	}
}

func (c *Cli) meCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current user as the server sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.authService.Me(cmd.Context())
			if err != nil {
				return err
			}
			c.printUser(user)
			return nil
		},
	}
}

func (c *Cli) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the access and refresh tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.authService.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			c.io.Println("✓ Tokens refreshed")
			c.printExpiry(data)
			return nil
		},
	}
}

func (c *Cli) revokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke",
		Short: "Log out on every device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := c.authService.Revoke(cmd.Context())
			if err != nil {
				return fmt.Errorf("revoke failed: %w", err)
			}
			c.io.Printf("✓ All sessions revoked (token version %d)\n", version)
			c.io.Println("Run 'gophauth login' to start a new session.")
			return nil
		},
	}
}

func (c *Cli) resetRequestCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-request",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := c.readValue(email, "Email: ")
			if err != nil {
				return err
			}
			if err := c.authService.RequestPasswordReset(cmd.Context(), email); err != nil {
				return fmt.Errorf("reset request failed: %w", err)
			}
			c.io.Println("If the account exists, a reset link has been sent.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")

	return cmd
}

func (c *Cli) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [token-or-link]",
		Short: "Set a new password with the emailed token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			if len(args) == 1 {
				input = args[0]
			}
			input, err := c.readValue(input, "Reset token or link: ")
			if err != nil {
				return err
			}
			password, err := c.readPassword("New password: ", true)
			if err != nil {
				return err
			}

			if err := c.authService.PerformPasswordReset(cmd.Context(), input, password); err != nil {
				return fmt.Errorf("password reset failed: %w", err)
			}

			c.io.Println("✓ Password changed. All sessions were logged out.")
			c.io.Println("Run 'gophauth login' with the new password.")
			return nil
		},
	}
}

func (c *Cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.authService.Status(cmd.Context())
			if errors.Is(err, storage.ErrAuthNotFound) {
				c.io.Println("Status: Not authenticated")
				c.io.Println("Run 'gophauth login' to authenticate.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to check authentication: %w", err)
			}

			now := time.Now()
			if !data.RefreshValid(now) {
				c.io.Println("Status: Session expired")
				c.io.Printf("Email: %s\n", data.Email)
				c.io.Println("Run 'gophauth login' to authenticate.")
				return nil
			}

			c.io.Println("Status: Authenticated")
			c.io.Printf("Email: %s\n", data.Email)
			c.io.Printf("User ID: %s\n", data.UserID)
			c.printExpiry(data)
			if !data.AccessValid(now) {
				c.io.Println("Access token expired, it will be refreshed on the next request.")
			}
			return nil
		},
	}
}

func (c *Cli) profileCommand() *cobra.Command {
	var firstName, lastName string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			user, err := c.authService.Profile(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("first-name") || flags.Changed("last-name") {
				if !flags.Changed("first-name") {
					firstName = user.FirstName
				}
				if !flags.Changed("last-name") {
					lastName = user.LastName
				}
				user, err = c.authService.UpdateProfile(ctx, firstName, lastName)
				if err != nil {
					return fmt.Errorf("profile update failed: %w", err)
				}
				c.io.Println("✓ Profile updated")
			}

			c.printUser(user)
			return nil
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "New first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "New last name")

	return cmd
}

func (c *Cli) usersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := c.authService.Users(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				c.io.Println("No users.")
				return nil
			}
			for _, u := range users {
				c.io.Printf("%s  %s  %s\n", u.ID, u.Email, fullName(u))
			}
			return nil
		},
	}
}

func (c *Cli) printSession(data *storage.AuthData) {
	c.io.Printf("Email: %s\n", data.Email)
	c.io.Printf("User ID: %s\n", data.UserID)
	c.printExpiry(data)
}

func (c *Cli) printExpiry(data *storage.AuthData) {
	if data.AccessExpiresAt > 0 {
		c.io.Printf("Access token expires: %s\n", time.Unix(data.AccessExpiresAt, 0).Format(time.RFC3339))
	}
	if data.RefreshExpiresAt > 0 {
		c.io.Printf("Session expires: %s\n", time.Unix(data.RefreshExpiresAt, 0).Format(time.RFC3339))
	}
}

func (c *Cli) printUser(user *api.User) {
	c.io.Printf("ID: %s\n", user.ID)
	c.io.Printf("Email: %s\n", user.Email)
	if name := fullName(*user); name != "" {
		c.io.Printf("Name: %s\n", name)
	}
}

func fullName(u api.User) string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}
