// internal/app/watch.go
package app

import (
	"context"
	"sync"
	"time"

	"codepanel-client/internal/domain/auth"
	"codepanel-client/internal/realtime"
	"codepanel-client/internal/session"

	"go.uber.org/zap"
)

const connectTimeout = 15 * time.Second

// watcher binds the realtime connection to the session lifecycle. It is the
// only component that calls Connect and Disconnect; everything else just
// registers handlers or sends messages.
type watcher struct {
	rt  *realtime.Client
	log *zap.Logger

	mu    sync.Mutex
	token string

	unsub func()
}

func newWatcher(sessions *session.Manager, rt *realtime.Client, logger *zap.Logger) *watcher {
	w := &watcher{rt: rt, log: logger}
	w.unsub = sessions.OnChange(w.onSession)
	if sess := sessions.Current(); sess != nil {
		w.onSession(sess)
	}
	return w
}

func (w *watcher) onSession(sess *auth.Session) {
	if sess == nil {
		w.mu.Lock()
		w.token = ""
		w.mu.Unlock()
		w.rt.Disconnect()
		return
	}

	w.mu.Lock()
	sameToken := w.token == sess.AccessToken
	w.token = sess.AccessToken
	w.mu.Unlock()

	if sameToken && w.rt.IsConnected() {
		return
	}

	// A refreshed token replaces the connection's credential: reconnect.
	if w.rt.IsConnected() {
		w.rt.Disconnect()
	}

	token := sess.AccessToken
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := w.rt.Connect(ctx, token); err != nil {
			w.log.Warn("realtime connect failed", zap.Error(err))
		}
	}()
}

func (w *watcher) stop() {
	w.unsub()
	w.rt.Disconnect()
}
