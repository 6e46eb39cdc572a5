// internal/notifycache/bridge.go
package notifycache

import (
	"context"
	"sync"
	"time"

	"codepanel-client/internal/domain/notification"
	"codepanel-client/internal/notifications"

	"go.uber.org/zap"
)

// Events is the slice of the realtime client the bridge consumes.
type Events interface {
	OnNotification(fn func(notification.Notification)) func()
	OnUnreadCount(fn func(int)) func()
}

// Bridge reconciles the push-driven and pull-driven views of notifications.
// Push events mutate the cache optimistically for fast perceived feedback;
// a delayed authoritative fetch always supersedes the optimistic value.
type Bridge struct {
	api            *notifications.Client
	store          *Store
	log            *zap.Logger
	reconcileDelay time.Duration
	fetchTimeout   time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	unsubs []func()
	closed bool

	toastMu     sync.Mutex
	nextToastID uint64
	toasts      map[uint64]func(notification.Notification)
}

type BridgeOption func(*Bridge)

// WithReconcileDelay overrides the window between an optimistic update and
// its authoritative re-fetch.
func WithReconcileDelay(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.reconcileDelay = d
	}
}

// WithListStaleAfter overrides the staleness tolerance of cached pages.
func WithListStaleAfter(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.store = NewStore(d)
	}
}

func NewBridge(apiClient *notifications.Client, logger *zap.Logger, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		api:            apiClient,
		store:          NewStore(2 * time.Minute),
		log:            logger,
		reconcileDelay: 500 * time.Millisecond,
		fetchTimeout:   10 * time.Second,
		timers:         make(map[*time.Timer]struct{}),
		toasts:         make(map[uint64]func(notification.Notification)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach subscribes the bridge to inbound push events.
func (b *Bridge) Attach(events Events) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubs = append(b.unsubs,
		events.OnNotification(b.handleNotification),
		events.OnUnreadCount(b.handleUnreadCount),
	)
}

// Close detaches from push events and cancels pending reconciliations.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	unsubs := b.unsubs
	b.unsubs = nil
	for timer := range b.timers {
		timer.Stop()
	}
	b.timers = make(map[*time.Timer]struct{})
	b.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// OnToast registers a handler for transient user-facing notifications and
// returns its unsubscribe func.
func (b *Bridge) OnToast(fn func(notification.Notification)) func() {
	b.toastMu.Lock()
	defer b.toastMu.Unlock()
	id := b.nextToastID
	b.nextToastID++
	b.toasts[id] = fn
	return func() {
		b.toastMu.Lock()
		defer b.toastMu.Unlock()
		delete(b.toasts, id)
	}
}

// CachedUnread returns the locally cached counter without touching the
// server.
func (b *Bridge) CachedUnread() (int, bool) {
	return b.store.Unread()
}

// UnreadCount fetches the authoritative counter. The counter cache has zero
// staleness tolerance, so explicit reads always go to the server.
func (b *Bridge) UnreadCount(ctx context.Context) (int, error) {
	count, err := b.api.UnreadCount(ctx)
	if err != nil {
		return 0, err
	}
	b.store.SetUnread(count)
	return count, nil
}

// Notifications returns one page, from cache while fresh.
func (b *Bridge) Notifications(ctx context.Context, page, size int) (*notification.Page, error) {
	if cached, ok := b.store.Page(false, page, size); ok {
		return cached, nil
	}
	fetched, err := b.api.List(ctx, page, size)
	if err != nil {
		return nil, err
	}
	b.store.SetPage(false, page, size, fetched)
	return fetched, nil
}

// UnreadNotifications returns one page of unread notifications, from cache
// while fresh.
func (b *Bridge) UnreadNotifications(ctx context.Context, page, size int) (*notification.Page, error) {
	if cached, ok := b.store.Page(true, page, size); ok {
		return cached, nil
	}
	fetched, err := b.api.ListUnread(ctx, page, size)
	if err != nil {
		return nil, err
	}
	b.store.SetPage(true, page, size, fetched)
	return fetched, nil
}

// MarkAsRead flags one notification read, decrementing the cached counter
// optimistically on success.
func (b *Bridge) MarkAsRead(ctx context.Context, id string) error {
	resp, err := b.api.MarkAsRead(ctx, id)
	if err != nil {
		return err
	}
	if resp.Success {
		b.store.AddUnread(-1)
		b.store.InvalidateLists()
	}
	return nil
}

// MarkAllAsRead flags everything read and zeroes the cached counter.
func (b *Bridge) MarkAllAsRead(ctx context.Context) (int, error) {
	resp, err := b.api.MarkAllAsRead(ctx)
	if err != nil {
		return 0, err
	}
	b.store.SetUnread(0)
	b.store.InvalidateLists()
	return resp.MarkedCount, nil
}

// handleNotification applies the optimistic push path: bump the counter,
// surface a toast, invalidate the cached lists, and reconcile against the
// server after a short delay.
func (b *Bridge) handleNotification(n notification.Notification) {
	b.store.AddUnread(1)
	b.store.InvalidateLists()

	b.toastMu.Lock()
	fns := make([]func(notification.Notification), 0, len(b.toasts))
	for _, fn := range b.toasts {
		fns = append(fns, fn)
	}
	b.toastMu.Unlock()
	for _, fn := range fns {
		fn(n)
	}

	b.scheduleReconcile()
}

// handleUnreadCount is the direct push path for counter updates. Setting the
// cache from it is deliberately disabled: the fallback increment plus the
// delayed authoritative re-fetch is the path that is trusted.
// TODO: re-enable the direct set once the server's pushed counter is
// confirmed accurate, and drop the reconcile timer for this case.
func (b *Bridge) handleUnreadCount(count int) {
	b.log.Warn("ignoring pushed unread count, awaiting authoritative fetch",
		zap.Int("pushed_count", count))
}

// scheduleReconcile arms a one-shot timer that replaces the optimistic
// counter with the server's value.
func (b *Bridge) scheduleReconcile() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(b.reconcileDelay, func() {
		b.mu.Lock()
		delete(b.timers, timer)
		b.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), b.fetchTimeout)
		defer cancel()
		count, err := b.api.UnreadCount(ctx)
		if err != nil {
			b.log.Warn("unread-count reconciliation failed", zap.Error(err))
			return
		}
		b.store.SetUnread(count)
	})
	b.timers[timer] = struct{}{}
	b.mu.Unlock()
}
