// internal/app/app.go
package app

import (
	"codepanel-client/internal/api"
	"codepanel-client/internal/config"
	"codepanel-client/internal/notifications"
	"codepanel-client/internal/notifycache"
	"codepanel-client/internal/realtime"
	"codepanel-client/internal/session"

	"go.uber.org/zap"
)

// App wires the client subsystems together: one API client, one session
// manager, one realtime connection, one notification cache.
type App struct {
	Config        config.AppConfig
	Log           *zap.Logger
	API           *api.Client
	Session       *session.Manager
	Realtime      *realtime.Client
	Notifications *notifycache.Bridge

	watcher *watcher
}

func New(cfg config.AppConfig, logger *zap.Logger) *App {
	apiClient := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, logger.Named("api"))
	sessions := session.NewManager(apiClient, logger.Named("session"),
		session.WithCheckInterval(cfg.TokenCheckInterval))
	rtClient := realtime.NewClient(cfg.WSURL, logger.Named("realtime"),
		realtime.WithBackoff(cfg.ReconnectBaseDelay, cfg.MaxReconnectAttempts),
		realtime.WithPingInterval(cfg.PingInterval))
	bridge := notifycache.NewBridge(notifications.NewClient(apiClient), logger.Named("notifycache"),
		notifycache.WithReconcileDelay(cfg.ReconcileDelay),
		notifycache.WithListStaleAfter(cfg.ListStaleAfter))
	bridge.Attach(rtClient)

	return &App{
		Config:        cfg,
		Log:           logger,
		API:           apiClient,
		Session:       sessions,
		Realtime:      rtClient,
		Notifications: bridge,
	}
}

// Start launches the background pieces: the proactive token refresh and the
// session watcher that keeps the realtime connection bound to the active
// session.
func (a *App) Start() {
	a.Session.Start()
	a.watcher = newWatcher(a.Session, a.Realtime, a.Log.Named("watcher"))
}

// Close tears everything down in reverse order.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.stop()
		a.watcher = nil
	}
	a.Notifications.Close()
	a.Session.Close()
}
