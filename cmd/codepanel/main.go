// Package main implements the codepanel CLI, a terminal client for the
// CodePanel peer code review platform.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"codepanel-client/internal/app"
	"codepanel-client/internal/config"
	"codepanel-client/internal/domain/auth"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose   bool
	serverURL string
	wsURL     string
	email     string
	password  string

	cfg         config.AppConfig
	logger      *zap.Logger
	application *app.App
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codepanel",
	Short: "CLI client for the CodePanel peer code review platform",
	Long: `codepanel talks to a CodePanel server: it authenticates, lists and
manages notifications, and can tail realtime pushes as they arrive.

Credentials come from --email/--password, the CODEPANEL_EMAIL and
CODEPANEL_PASSWORD environment variables, or a .env file in the working
directory.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "CodePanel API base URL")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws", "", "CodePanel realtime endpoint URL")
	rootCmd.PersistentFlags().StringVar(&email, "email", "", "account email")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "account password")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(watchCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on system env vars")
	}
	cfg = config.Load()
	if serverURL != "" {
		cfg.APIBaseURL = serverURL
	}
	if wsURL != "" {
		cfg.WSURL = wsURL
	}
	if email != "" {
		cfg.Email = email
	}
	if password != "" {
		cfg.Password = password
	}

	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	application = app.New(cfg, logger)
	return nil
}

// ensureSession logs in with the configured credentials. The session lives
// only for this process; nothing is persisted locally.
func ensureSession(ctx context.Context) (*auth.Session, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("credentials required: set --email/--password or CODEPANEL_EMAIL/CODEPANEL_PASSWORD")
	}
	return application.Session.Login(ctx, auth.LoginRequest{
		Email:    cfg.Email,
		Password: cfg.Password,
	})
}
