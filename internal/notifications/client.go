// internal/notifications/client.go
package notifications

import (
	"context"
	"fmt"

	"codepanel-client/internal/api"
	"codepanel-client/internal/domain/notification"
	xerrors "codepanel-client/internal/pkg/errors"
)

// Client wraps the server's notification endpoints.
type Client struct {
	api *api.Client
}

func NewClient(apiClient *api.Client) *Client {
	return &Client{api: apiClient}
}

// List fetches one page of notifications, read and unread alike.
func (c *Client) List(ctx context.Context, page, size int) (*notification.Page, error) {
	var out notification.Page
	path := fmt.Sprintf("/api/notifications?page=%d&size=%d", page, size)
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, xerrors.Wrap(err, "failed to list notifications")
	}
	return &out, nil
}

// ListUnread fetches one page of unread notifications.
func (c *Client) ListUnread(ctx context.Context, page, size int) (*notification.Page, error) {
	var out notification.Page
	path := fmt.Sprintf("/api/notifications/unread?page=%d&size=%d", page, size)
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, xerrors.Wrap(err, "failed to list unread notifications")
	}
	return &out, nil
}

// UnreadCount fetches the authoritative unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out notification.UnreadCountResponse
	if err := c.api.Get(ctx, "/api/notifications/unread/count", &out); err != nil {
		return 0, xerrors.Wrap(err, "failed to fetch unread count")
	}
	return out.Count, nil
}

// MarkAsRead flags a single notification as read.
func (c *Client) MarkAsRead(ctx context.Context, id string) (*notification.MarkAsReadResponse, error) {
	var out notification.MarkAsReadResponse
	path := fmt.Sprintf("/api/notifications/%s/read", id)
	if err := c.api.Put(ctx, path, struct{}{}, &out); err != nil {
		return nil, xerrors.Wrap(err, "failed to mark notification as read")
	}
	return &out, nil
}

// MarkAllAsRead flags every notification as read.
func (c *Client) MarkAllAsRead(ctx context.Context) (*notification.MarkAllAsReadResponse, error) {
	var out notification.MarkAllAsReadResponse
	if err := c.api.Put(ctx, "/api/notifications/read-all", struct{}{}, &out); err != nil {
		return nil, xerrors.Wrap(err, "failed to mark all notifications as read")
	}
	return &out, nil
}
