package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codepanel-client/internal/domain/notification"
	rt "codepanel-client/internal/domain/realtime"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail notifications pushed over the realtime connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ensureSession(cmd.Context()); err != nil {
			return err
		}

		unsubToast := application.Notifications.OnToast(func(n notification.Notification) {
			printNotification(n)
			if count, ok := application.Notifications.CachedUnread(); ok {
				fmt.Printf("    unread: %d\n", count)
			}
		})
		defer unsubToast()

		unsubStatus := application.Realtime.OnStatusChange(func(status rt.ConnectionStatus) {
			if status.Connected {
				fmt.Println("-- connected --")
			} else if status.ReconnectAttempts > 0 {
				fmt.Printf("-- disconnected, reconnect attempt %d --\n", status.ReconnectAttempts)
			} else {
				fmt.Println("-- disconnected --")
			}
		})
		defer unsubStatus()

		// Seed the counter so the first push prints a meaningful number.
		if count, err := application.Notifications.UnreadCount(cmd.Context()); err == nil {
			fmt.Printf("Watching notifications (%d unread). Ctrl-C to stop.\n", count)
		} else {
			fmt.Println("Watching notifications. Ctrl-C to stop.")
		}

		application.Start()
		defer application.Close()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-cmd.Context().Done():
		}

		fmt.Println("Stopping")
		return nil
	},
}
