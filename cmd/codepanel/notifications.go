package main

import (
	"fmt"

	"codepanel-client/internal/domain/notification"

	"github.com/spf13/cobra"
)

var (
	listPage   int
	listSize   int
	listUnread bool
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List and manage notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ensureSession(cmd.Context()); err != nil {
			return err
		}

		var (
			page *notification.Page
			err  error
		)
		if listUnread {
			page, err = application.Notifications.UnreadNotifications(cmd.Context(), listPage, listSize)
		} else {
			page, err = application.Notifications.Notifications(cmd.Context(), listPage, listSize)
		}
		if err != nil {
			return err
		}

		if page.Empty {
			fmt.Println("No notifications")
			return nil
		}
		for _, n := range page.Content {
			printNotification(n)
		}
		fmt.Printf("\nPage %d/%d (%d total)\n", page.Number+1, page.TotalPages, page.TotalElements)
		return nil
	},
}

var notificationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the unread notification count",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ensureSession(cmd.Context()); err != nil {
			return err
		}
		count, err := application.Notifications.UnreadCount(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d unread\n", count)
		return nil
	},
}

var markReadCmd = &cobra.Command{
	Use:   "mark-read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ensureSession(cmd.Context()); err != nil {
			return err
		}
		if err := application.Notifications.MarkAsRead(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Marked as read")
		return nil
	},
}

var markAllReadCmd = &cobra.Command{
	Use:   "mark-all-read",
	Short: "Mark every notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ensureSession(cmd.Context()); err != nil {
			return err
		}
		marked, err := application.Notifications.MarkAllAsRead(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d notifications as read\n", marked)
		return nil
	},
}

func printNotification(n notification.Notification) {
	read := " "
	if !n.IsRead {
		read = "*"
	}
	fmt.Printf("%s [%s] %s: %s (%s)\n", read, n.Type, n.Title, n.Message,
		n.CreatedAt.Format("2006-01-02 15:04"))
	if n.ActionURL != "" {
		fmt.Printf("    %s\n", n.ActionURL)
	}
}

func init() {
	notificationsListCmd.Flags().IntVar(&listPage, "page", 0, "page number (zero-based)")
	notificationsListCmd.Flags().IntVar(&listSize, "size", 20, "page size")
	notificationsListCmd.Flags().BoolVar(&listUnread, "unread", false, "only unread notifications")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsCountCmd)
	notificationsCmd.AddCommand(markReadCmd)
	notificationsCmd.AddCommand(markAllReadCmd)
}
