package controller

import (
	"context"

	"github.com/yllada/vpn-client/auth"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/deeplink"
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/tray"
)

// Integration is what the controller needs from the desktop environment.
// All methods are called from the controller goroutine.
type Integration interface {
	SetWelcomeWindowVisible(visible bool, session *auth.Session) error
	NotifySignedIn(session *auth.Session) error
	NotifySignedOut() error
	OpenURL(url string) error
	SetTrayIcon(icon tray.Icon)
	SetTrayMenu(state tray.AppState)
	ShowNotification(title, body string) error
	// ShowUpdateNotification sends UpdateNotificationClicked on requests
	// when the user clicks it.
	ShowUpdateNotification(requests chan<- Request, title, url string) error
	ShowWindow(window tray.Window) error
	CopyToClipboard(text string) error
}

// Auth is the session store.
type Auth interface {
	Token() (common.Secret, bool, error)
	Session() *auth.Session
	OngoingRequest() *auth.Request
	StartSignIn() (*auth.Request, error)
	HandleResponse(resp *deeplink.AuthResponse) (common.Secret, error)
	SignOut() error
}

// ServiceConn is the channel to the tunnel service.
type ServiceConn interface {
	Send(msg ipc.ClientMsg) error
	Messages() <-chan ipc.Received
	Close() error
}

// RanBeforeStore remembers whether the client ever connected.
type RanBeforeStore interface {
	RanBefore(ctx context.Context) (bool, error)
	SetRanBefore(ctx context.Context) error
}

// SettingsStore persists settings.
type SettingsStore interface {
	Save(s *config.Settings) error
}

// LogControl manages the GUI's own logs.
type LogControl interface {
	ApplyFilter(filter string) error
	ClearLogs() error
	ExportLogs(path, stem string) error
}
