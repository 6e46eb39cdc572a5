// internal/realtime/client.go
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"codepanel-client/internal/domain/notification"
	rt "codepanel-client/internal/domain/realtime"
	xerrors "codepanel-client/internal/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	connectAckWait = 10 * time.Second
	maxMessageSize = 512 * 1024 // 512KB
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// Client owns the single logical realtime connection for the process. It
// dials the server with the current bearer token, routes inbound frames to
// registered handlers, and retries dropped connections with a bounded
// linear backoff. At most one connection attempt is in flight at a time.
type Client struct {
	url          string
	log          *zap.Logger
	dialer       *websocket.Dialer
	baseDelay    time.Duration
	maxAttempts  int
	pingInterval time.Duration

	mu             sync.Mutex
	state          connState
	conn           *websocket.Conn
	send           chan []byte
	pumpCancel     context.CancelFunc
	reconnectTimer *time.Timer
	generation     uint64
	status         rt.ConnectionStatus

	handlerMu      sync.Mutex
	nextHandlerID  uint64
	notifHandlers  map[uint64]func(notification.Notification)
	countHandlers  map[uint64]func(int)
	statusHandlers map[uint64]func(rt.ConnectionStatus)
}

type Option func(*Client)

// WithBackoff overrides the reconnect policy.
func WithBackoff(baseDelay time.Duration, maxAttempts int) Option {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxAttempts = maxAttempts
	}
}

// WithPingInterval overrides the keep-alive ping period.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pingInterval = d
	}
}

func NewClient(url string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		url:            url,
		log:            logger,
		dialer:         websocket.DefaultDialer,
		baseDelay:      3 * time.Second,
		maxAttempts:    5,
		pingInterval:   30 * time.Second,
		notifHandlers:  make(map[uint64]func(notification.Notification)),
		countHandlers:  make(map[uint64]func(int)),
		statusHandlers: make(map[uint64]func(rt.ConnectionStatus)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server and returns once the connection is acknowledged
// or rejected. Calling it while already connected or connecting is a no-op.
func (c *Client) Connect(ctx context.Context, token string) error {
	return c.connect(ctx, token, nil)
}

// connect is the shared dial path. A non-nil expectGen makes the attempt
// conditional: it is abandoned when a Disconnect has superseded the
// generation that scheduled it.
func (c *Client) connect(ctx context.Context, token string, expectGen *uint64) error {
	c.mu.Lock()
	if expectGen != nil && *expectGen != c.generation {
		c.mu.Unlock()
		return nil
	}
	if c.state != stateDisconnected {
		c.mu.Unlock()
		c.log.Debug("realtime connection already active, skipping connect")
		return nil
	}
	c.state = stateConnecting
	startGen := c.generation
	c.stopReconnectTimerLocked()
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.log.Warn("realtime dial failed", zap.Error(err))
		c.connectFailed(token, startGen, true)
		return xerrors.Wrap(err, "realtime dial failed")
	}

	ack, err := c.awaitAck(conn)
	if err != nil {
		conn.Close()
		c.log.Warn("realtime connection rejected", zap.Error(err))
		// An explicit rejection is an answer, not an outage: no retry.
		c.connectFailed(token, startGen, false)
		return err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.generation != startGen || c.state != stateConnecting {
		// A Disconnect landed while the dial was in flight.
		c.mu.Unlock()
		cancel()
		conn.Close()
		return nil
	}
	c.state = stateConnected
	c.conn = conn
	c.send = make(chan []byte, 256)
	c.pumpCancel = cancel
	c.generation++
	gen := c.generation
	c.status = rt.ConnectionStatus{
		Connected:         true,
		UserID:            ack.UserID,
		LastConnected:     time.Now(),
		ReconnectAttempts: 0,
	}
	status := c.status
	send := c.send
	c.mu.Unlock()

	c.log.Info("realtime connected", zap.String("user_id", ack.UserID))
	c.notifyStatus(status)

	go c.readPump(conn, gen, token)
	go c.writePump(pumpCtx, conn, send, gen, token)

	c.subscribeAll()
	c.SendMessage(rt.DestConnect, struct{}{})

	return nil
}

// Disconnect cancels any pending reconnect, deactivates the connection and
// marks the client disconnected. Bumping the generation invalidates every
// in-flight dial and every not-yet-armed retry. Always safe to call; a call
// with nothing to tear down stays silent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	timerPending := c.reconnectTimer != nil
	c.stopReconnectTimerLocked()
	c.status.ReconnectAttempts = 0
	c.generation++
	wasActive := c.teardownLocked()
	status := c.status
	c.mu.Unlock()

	if !wasActive && !timerPending {
		return
	}
	if wasActive {
		c.log.Info("realtime disconnected")
	}
	c.notifyStatus(status)
}

// SendMessage publishes a payload to a server destination. When the
// connection is not active this is a no-op with a logged warning.
func (c *Client) SendMessage(destination string, payload interface{}) {
	c.mu.Lock()
	connected := c.state == stateConnected
	send := c.send
	c.mu.Unlock()

	if !connected {
		c.log.Warn("cannot send message: realtime connection not active",
			zap.String("destination", destination))
		return
	}

	frame, err := rt.NewFrame(rt.EventTypeMessage, destination, payload)
	if err != nil {
		c.log.Error("failed to build outbound frame", zap.Error(err))
		return
	}
	data, err := frame.ToJSON()
	if err != nil {
		c.log.Error("failed to marshal outbound frame", zap.Error(err))
		return
	}

	select {
	case send <- data:
	default:
		c.log.Warn("outbound frame dropped: send buffer full",
			zap.String("destination", destination))
	}
}

// SendPing sends a keep-alive message. The write pump calls this on a timer
// while connected.
func (c *Client) SendPing() {
	c.SendMessage(rt.DestPing, map[string]int64{"timestamp": time.Now().UnixMilli()})
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// Status returns a snapshot of the connection state.
func (c *Client) Status() rt.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// OnNotification registers a handler for pushed notifications and returns
// its unsubscribe func.
func (c *Client) OnNotification(fn func(notification.Notification)) func() {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.notifHandlers[id] = fn
	return func() {
		c.handlerMu.Lock()
		defer c.handlerMu.Unlock()
		delete(c.notifHandlers, id)
	}
}

// OnUnreadCount registers a handler for pushed unread-count updates.
func (c *Client) OnUnreadCount(fn func(int)) func() {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.countHandlers[id] = fn
	return func() {
		c.handlerMu.Lock()
		defer c.handlerMu.Unlock()
		delete(c.countHandlers, id)
	}
}

// OnStatusChange registers a handler for connection state transitions.
func (c *Client) OnStatusChange(fn func(rt.ConnectionStatus)) func() {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.statusHandlers[id] = fn
	return func() {
		c.handlerMu.Lock()
		defer c.handlerMu.Unlock()
		delete(c.statusHandlers, id)
	}
}

// awaitAck reads the server's first frame, which either acknowledges the
// connection or rejects it.
func (c *Client) awaitAck(conn *websocket.Conn) (*rt.ConnectedData, error) {
	conn.SetReadDeadline(time.Now().Add(connectAckWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, xerrors.Wrap(err, "no connection acknowledgment")
	}

	frame, err := rt.ParseFrame(data)
	if err != nil {
		return nil, xerrors.Wrap(err, "malformed connection acknowledgment")
	}

	switch frame.Type {
	case rt.EventTypeConnected:
		var ack rt.ConnectedData
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &ack); err != nil {
				return nil, xerrors.Wrap(err, "malformed connection acknowledgment")
			}
		}
		return &ack, nil
	case rt.EventTypeError:
		var e rt.ErrorData
		_ = json.Unmarshal(frame.Data, &e)
		return nil, xerrors.Wrap(xerrors.ErrConnectRejected, e.Message)
	default:
		return nil, xerrors.ErrConnectRejected
	}
}

// subscribeAll asks the server for the user's private channels plus the
// broadcast announcements topic.
func (c *Client) subscribeAll() {
	frame, err := rt.NewFrame(rt.EventTypeSubscribe, "", rt.SubscribeData{
		Destinations: []string{
			rt.DestNotifications,
			rt.DestUnreadCount,
			rt.DestAnnouncements,
		},
	})
	if err != nil {
		c.log.Error("failed to build subscribe frame", zap.Error(err))
		return
	}
	data, err := frame.ToJSON()
	if err != nil {
		c.log.Error("failed to marshal subscribe frame", zap.Error(err))
		return
	}

	c.mu.Lock()
	send := c.send
	connected := c.state == stateConnected
	c.mu.Unlock()
	if !connected {
		return
	}
	select {
	case send <- data:
	default:
		c.log.Warn("subscribe frame dropped: send buffer full")
	}
}

// readPump consumes inbound frames until the connection dies. A read error
// on the current generation triggers the reconnect path; stale generations
// were already torn down by Disconnect or a newer connect.
func (c *Client) readPump(conn *websocket.Conn, gen uint64, token string) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("realtime read error", zap.Error(err))
			}
			c.transportError(gen, token)
			return
		}
		c.dispatch(data)
	}
}

// writePump drains the send buffer and emits the keep-alive ping. A failed
// write reports the dead connection itself rather than waiting for the read
// side's pong deadline to notice.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, send chan []byte, gen uint64, token string) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("realtime write error", zap.Error(err))
				c.transportError(gen, token)
				return
			}
		case <-ticker.C:
			c.SendPing()
		}
	}
}

func (c *Client) dispatch(data []byte) {
	frame, err := rt.ParseFrame(data)
	if err != nil {
		c.log.Warn("dropping malformed inbound frame", zap.Error(err))
		return
	}

	switch {
	case frame.Destination == rt.DestNotifications:
		var n notification.Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.log.Warn("dropping malformed notification frame", zap.Error(err))
			return
		}
		for _, fn := range c.notificationHandlers() {
			fn(n)
		}

	case frame.Destination == rt.DestUnreadCount:
		count, ok := decodeCount(frame.Data)
		if !ok {
			c.log.Warn("dropping malformed unread-count frame")
			return
		}
		for _, fn := range c.unreadCountHandlers() {
			fn(count)
		}

	case frame.Destination == rt.DestAnnouncements:
		// Received but not acted upon.
		c.log.Info("system announcement received")

	case frame.Type == rt.EventTypePong:
		c.log.Debug("pong received")

	case frame.Type == rt.EventTypeError:
		var e rt.ErrorData
		_ = json.Unmarshal(frame.Data, &e)
		c.log.Warn("server error frame",
			zap.String("code", e.Code),
			zap.String("message", e.Message))

	default:
		c.log.Debug("unhandled inbound frame", zap.String("type", string(frame.Type)))
	}
}

// decodeCount accepts both a bare integer and a {count} object.
func decodeCount(data []byte) (int, bool) {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n, true
	}
	var wrapped notification.UnreadCountResponse
	if err := json.Unmarshal(data, &wrapped); err == nil {
		return wrapped.Count, true
	}
	return 0, false
}

// connectFailed records a failed attempt and optionally schedules a retry.
// Attempts whose generation a Disconnect has superseded are dropped silently.
func (c *Client) connectFailed(token string, gen uint64, retry bool) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state = stateDisconnected
	c.status.Connected = false
	status := c.status
	c.mu.Unlock()

	c.notifyStatus(status)
	if retry {
		c.scheduleReconnect(token, gen)
	}
}

// transportError handles a dead connection discovered by one of the pumps.
func (c *Client) transportError(gen uint64, token string) {
	c.mu.Lock()
	if gen != c.generation || c.state != stateConnected {
		// Already torn down by Disconnect or superseded by a newer connect.
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	status := c.status
	c.mu.Unlock()

	c.notifyStatus(status)
	c.scheduleReconnect(token, gen)
}

// scheduleReconnect arms the retry timer: baseDelay * attempt, capped at
// maxAttempts, after which the client stays down until Connect is called
// again. A Disconnect between the teardown and this call, or while the timer
// is pending, invalidates gen and the retry dies here or in connect.
func (c *Client) scheduleReconnect(token string, gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	if c.status.ReconnectAttempts >= c.maxAttempts {
		c.mu.Unlock()
		c.log.Warn("max reconnection attempts reached, giving up")
		return
	}
	c.status.ReconnectAttempts++
	attempt := c.status.ReconnectAttempts
	delay := c.baseDelay * time.Duration(attempt)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.connect(context.Background(), token, &gen)
	})
	c.mu.Unlock()

	c.log.Info("reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", c.maxAttempts),
		zap.Duration("delay", delay))
}

// teardownLocked closes the active connection, if any. Caller holds c.mu.
func (c *Client) teardownLocked() bool {
	active := c.conn != nil
	if c.pumpCancel != nil {
		c.pumpCancel()
		c.pumpCancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.send = nil
	c.state = stateDisconnected
	c.status.Connected = false
	return active
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) notificationHandlers() []func(notification.Notification) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	fns := make([]func(notification.Notification), 0, len(c.notifHandlers))
	for _, fn := range c.notifHandlers {
		fns = append(fns, fn)
	}
	return fns
}

func (c *Client) unreadCountHandlers() []func(int) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	fns := make([]func(int), 0, len(c.countHandlers))
	for _, fn := range c.countHandlers {
		fns = append(fns, fn)
	}
	return fns
}

func (c *Client) notifyStatus(status rt.ConnectionStatus) {
	c.handlerMu.Lock()
	fns := make([]func(rt.ConnectionStatus), 0, len(c.statusHandlers))
	for _, fn := range c.statusHandlers {
		fns = append(fns, fn)
	}
	c.handlerMu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}
