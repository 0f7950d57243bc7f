package ui

import (
	"context"
	"fmt"
	"net/url"

	"github.com/atotto/clipboard"
	"github.com/toqueteos/webbrowser"

	"github.com/yllada/vpn-client/auth"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/controller"
	"github.com/yllada/vpn-client/tray"
)

// Desktop is the controller's view of a Linux desktop session.
type Desktop struct {
	ctx          context.Context
	tray         *Tray
	notifier     *Notifier
	version      string
	settingsPath string

	openURL   func(string) error
	clipboard func(string) error
}

var _ controller.Integration = (*Desktop)(nil)

// NewDesktop returns a Desktop drawing on t. Background notifications stop
// waiting for clicks when ctx is done.
func NewDesktop(ctx context.Context, t *Tray, version, settingsPath string) *Desktop {
	return &Desktop{
		ctx:          ctx,
		tray:         t,
		notifier:     NewNotifier(),
		version:      version,
		settingsPath: settingsPath,
		openURL:      webbrowser.Open,
		clipboard:    clipboard.WriteAll,
	}
}

// SetWelcomeWindowVisible greets a signed-out user. There is no window to
// hide, so hiding is a no-op.
func (d *Desktop) SetWelcomeWindowVisible(visible bool, session *auth.Session) error {
	if !visible {
		return nil
	}
	if session != nil {
		return d.ShowNotification(common.AppName, "Signed in as "+session.ActorName)
	}
	return d.ShowNotification("Welcome to "+common.AppName, "Choose Sign in from the tray menu to get started.")
}

// NotifySignedIn records the new session in the log.
func (d *Desktop) NotifySignedIn(session *auth.Session) error {
	common.LogInfo("Signed in as %s", session.ActorName)
	return nil
}

// NotifySignedOut records the sign-out in the log.
func (d *Desktop) NotifySignedOut() error {
	common.LogInfo("Signed out")
	return nil
}

// OpenURL opens u in the default browser.
func (d *Desktop) OpenURL(u string) error {
	if err := d.openURL(u); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

// SetTrayIcon swaps the tray icon.
func (d *Desktop) SetTrayIcon(icon tray.Icon) {
	d.tray.SetIcon(icon)
}

// SetTrayMenu rebuilds the tray menu for state.
func (d *Desktop) SetTrayMenu(state tray.AppState) {
	d.tray.SetMenu(state)
}

// ShowNotification shows a desktop notification and waits for notify-send to exit.
func (d *Desktop) ShowNotification(title, body string) error {
	_, err := d.notifier.Show(d.ctx, Notification{Title: title, Message: body})
	return err
}

// ShowUpdateNotification returns as soon as the notification is up. A click
// arrives later on requests.
func (d *Desktop) ShowUpdateNotification(requests chan<- controller.Request, title, downloadURL string) error {
	go func() {
		clicked, err := d.notifier.Show(d.ctx, Notification{
			Title:   title,
			Message: "Click here to download the new version.",
			Action:  "Download",
		})
		if err != nil {
			common.LogError("Update notification failed: %v", err)
			return
		}
		if !clicked {
			return
		}
		select {
		case requests <- controller.UpdateNotificationClicked{URL: downloadURL}:
		case <-d.ctx.Done():
		}
	}()
	return nil
}

// ShowWindow shows the About notification or opens the settings file.
func (d *Desktop) ShowWindow(w tray.Window) error {
	switch w {
	case tray.WindowAbout:
		return d.ShowNotification("About "+common.AppName, "Version "+d.version)
	case tray.WindowSettings:
		// Settings are edited in the user's editor.
		u := url.URL{Scheme: "file", Path: d.settingsPath}
		return d.OpenURL(u.String())
	default:
		return fmt.Errorf("unknown window %v", w)
	}
}

// CopyToClipboard puts text on the system clipboard.
func (d *Desktop) CopyToClipboard(text string) error {
	if err := d.clipboard(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
