package main

import (
	"fmt"

	"codepanel-client/internal/domain/auth"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials against the CodePanel server",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := ensureSession(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s <%s> (%s)\n", sess.User.FullName(), sess.User.Email, sess.User.Role)
		fmt.Printf("Token valid until %s\n", sess.ExpiresAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var (
	registerFirstName string
	registerLastName  string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a CodePanel account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Email == "" || cfg.Password == "" {
			return fmt.Errorf("credentials required: set --email and --password")
		}
		sess, err := application.Session.Register(cmd.Context(), auth.RegisterRequest{
			Email:     cfg.Email,
			Password:  cfg.Password,
			FirstName: registerFirstName,
			LastName:  registerLastName,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s <%s>\n", sess.User.FullName(), sess.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the server-side refresh session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ensureSession(cmd.Context()); err != nil {
			return err
		}
		application.Session.Logout(cmd.Context())
		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := ensureSession(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("ID:    %s\n", sess.User.ID)
		fmt.Printf("Name:  %s\n", sess.User.FullName())
		fmt.Printf("Email: %s\n", sess.User.Email)
		fmt.Printf("Role:  %s\n", sess.User.Role)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerFirstName, "first-name", "", "first name")
	registerCmd.Flags().StringVar(&registerLastName, "last-name", "", "last name")
}
