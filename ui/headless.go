package ui

import (
	"github.com/yllada/vpn-client/auth"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/controller"
	"github.com/yllada/vpn-client/tray"
)

// Headless logs what a desktop would show. It is used for smoke tests and
// CI machines without a session bus.
type Headless struct{}

var _ controller.Integration = Headless{}

// SetWelcomeWindowVisible logs the visibility change.
func (Headless) SetWelcomeWindowVisible(visible bool, _ *auth.Session) error {
	common.LogDebug("Headless: welcome window visible=%v", visible)
	return nil
}

// NotifySignedIn logs the new session.
func (Headless) NotifySignedIn(session *auth.Session) error {
	common.LogInfo("Headless: signed in as %s", session.ActorName)
	return nil
}

// NotifySignedOut logs the sign-out.
func (Headless) NotifySignedOut() error {
	common.LogInfo("Headless: signed out")
	return nil
}

// OpenURL logs the URL length only.
func (Headless) OpenURL(u string) error {
	// Sign-in URLs carry the nonce.
	common.LogInfo("Headless: would open a URL (%d bytes)", len(u))
	return nil
}

// SetTrayIcon logs the icon at trace level.
func (Headless) SetTrayIcon(icon tray.Icon) {
	common.GetLogger().Trace("Headless: tray icon %+v", icon)
}

// SetTrayMenu logs the tooltip the tray would show.
func (Headless) SetTrayMenu(state tray.AppState) {
	common.LogDebug("Headless: tray %s", state.Tooltip())
}

// ShowNotification logs the notification.
func (Headless) ShowNotification(title, body string) error {
	common.LogInfo("Headless: notification %q: %s", title, body)
	return nil
}

// ShowUpdateNotification logs the update; nothing can be clicked.
func (Headless) ShowUpdateNotification(_ chan<- controller.Request, title, url string) error {
	common.LogInfo("Headless: update notification %q (%s)", title, url)
	return nil
}

// ShowWindow logs which window was asked for.
func (Headless) ShowWindow(w tray.Window) error {
	common.LogInfo("Headless: show %s window", w)
	return nil
}

// CopyToClipboard discards the text.
func (Headless) CopyToClipboard(string) error {
	return nil
}
