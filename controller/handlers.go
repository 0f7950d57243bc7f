package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/yllada/vpn-client/arbiter"
	"github.com/yllada/vpn-client/auth"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/deeplink"
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/tray"
	"github.com/yllada/vpn-client/updates"
)

func (c *Controller) handleServiceMsg(ctx context.Context, msg ipc.ServerMsg) (stop bool, err error) {
	switch msg := msg.(type) {
	case ipc.ClearedLogs:
		if c.clearLogsResult == nil {
			common.LogWarn("Got ClearedLogs with no ClearLogs request waiting, ignoring")
			return false, nil
		}
		var result error
		if msg.Err != "" {
			result = fmt.Errorf("tunnel service couldn't clear logs: %s", msg.Err)
		}
		reply(c.clearLogsResult, result)
		c.clearLogsResult = nil

	case ipc.ConnectResult:
		return false, c.handleConnectResult(ctx, msg)

	case ipc.DisconnectedGracefully:
		if _, ok := c.status.(Quitting); ok {
			return true, nil
		}

	case ipc.OnDisconnect:
		if err := c.signOut(); err != nil {
			return false, err
		}
		if msg.IsAuthenticationError {
			common.LogInfo("Disconnected by authentication error: %s", msg.ErrorMsg)
			c.logFailure("show notification", c.integration.ShowNotification(
				common.AppName+" disconnected",
				"To access resources, sign in again.",
			))
		} else {
			common.LogError("Tunnel disconnected: %s", msg.ErrorMsg)
			c.logFailure("show notification", c.integration.ShowNotification(
				common.AppName+" error",
				msg.ErrorMsg,
			))
		}

	case ipc.OnUpdateResources:
		if !NeedsResourceUpdates(c.status) {
			return false, nil
		}
		common.LogDebug("Got %d resources", len(msg.Resources))
		c.status = TunnelReady{Resources: msg.Resources}
		c.refreshTrayMenu()
		return false, c.updateDisabledResources()

	case ipc.TerminatingGracefully:
		common.LogInfo("Tunnel service is shutting down, quitting")
		c.integration.SetTrayIcon(tray.IconTerminating())
		c.logFailure("show notification", c.integration.ShowNotification(
			common.AppName+" disconnected",
			"The tunnel service was shut down, quitting.",
		))
		return true, nil

	case ipc.TunnelReady:
		switch s := c.status.(type) {
		case Disconnected, Quitting, TunnelReady:
			common.LogDebug("Ignoring TunnelReady in %s", statusName(c.status))
			return false, nil
		case WaitingForTunnel:
			common.LogInfo("Tunnel ready after %v", c.now().Sub(s.StartTime))
		case WaitingForPortal:
			common.LogInfo("Tunnel ready after %v", c.now().Sub(s.StartTime))
		default:
			common.LogInfo("Tunnel ready")
		}
		c.status = TunnelReady{}
		c.logFailure("show notification", c.integration.ShowNotification(
			common.AppName+" connected",
			"You are now signed in and able to access resources.",
		))
		c.refreshTrayMenu()

	case ipc.Hello:
		common.LogDebug("Ignoring repeated Hello")

	default:
		common.LogWarn("Ignoring unknown tunnel service message %T", msg)
	}
	return false, nil
}

func (c *Controller) handleConnectResult(ctx context.Context, result ipc.ConnectResult) error {
	waiting, ok := c.status.(WaitingForPortal)
	if !ok {
		common.LogDebug("Ignoring ConnectResult in %s", statusName(c.status))
		return nil
	}

	if result.Err == nil {
		c.logFailure("save ran-before marker", c.ranBefore.SetRanBefore(ctx))
		c.status = WaitingForTunnel{StartTime: waiting.StartTime}
		c.refreshTrayMenu()
		return nil
	}

	if result.Err.Kind == ipc.ConnectErrorIO {
		common.LogInfo("Couldn't reach the portal, will retry when the network changes: %s", result.Err.Message)
		c.status = RetryingConnection{Token: waiting.Token}
		c.refreshTrayMenu()
		return nil
	}

	common.LogError("Couldn't connect: %s", result.Err.Message)
	return c.signOut()
}

func (c *Controller) handleRequest(req Request) error {
	switch req := req.(type) {
	case ApplySettings:
		if err := c.logs.ApplyFilter(req.Settings.LogFilter); err != nil {
			reply(req.Result, fmt.Errorf("reload log filter: %w", err))
			return nil
		}
		if err := c.settingsStore.Save(req.Settings); err != nil {
			reply(req.Result, fmt.Errorf("save settings: %w", err))
			return nil
		}
		c.settings = req.Settings.Clone()
		if err := c.send(ipc.ApplyLogFilter{Directives: c.settings.LogFilter}); err != nil {
			return err
		}
		common.LogDebug("Applied new settings")
		// Favorites may have been reset.
		c.refreshTrayMenu()
		reply(req.Result, nil)

	case ClearLogs:
		if c.clearLogsResult != nil {
			common.LogError("Already waiting on another log clearing, replacing it")
			reply(c.clearLogsResult, errors.New("superseded by a newer clear-logs request"))
		}
		c.logFailure("clear GUI logs", c.logs.ClearLogs())
		if err := c.send(ipc.ClearLogs{}); err != nil {
			return err
		}
		c.clearLogsResult = req.Result

	case ExportLogs:
		err := c.logs.ExportLogs(req.Path, req.Stem)
		if err != nil {
			common.LogError("Couldn't export logs: %v", err)
		}
		reply(req.Result, err)

	case Fail:
		switch req.Failure {
		case FailureCrash:
			common.LogError("Crashing on purpose")
			crash()
		case FailureError:
			return ErrTestError
		case FailurePanic:
			panic("test panic")
		}

	case GetSettings:
		reply(req.Result, c.settings.Clone())

	case SignIn:
		c.startSignIn()

	case SignOut:
		common.LogInfo("User asked to sign out")
		return c.signOut()

	case TrayEvent:
		return c.handleTrayEvent(req.Event)

	case UpdateNotificationClicked:
		c.logFailure("open update page", c.integration.OpenURL(req.URL))

	default:
		common.LogWarn("Ignoring unknown request %T", req)
	}
	return nil
}

func (c *Controller) startSignIn() {
	req, err := c.auth.StartSignIn()
	if err != nil {
		common.LogError("Couldn't start sign-in: %v", err)
		return
	}
	if req == nil {
		common.LogInfo("Already signed in")
		return
	}
	url := req.ToURL(c.settings.AuthBaseURL)
	c.refreshTrayMenu()
	c.logFailure("open sign-in page", c.integration.OpenURL(url.Expose()))
	c.logFailure("hide welcome window", c.integration.SetWelcomeWindowVisible(false, c.auth.Session()))
}

func (c *Controller) handleTrayEvent(ev tray.Event) error {
	switch ev := ev.(type) {
	case tray.EventSignIn:
		c.startSignIn()

	case tray.EventSignOut:
		common.LogInfo("User asked to sign out")
		return c.signOut()

	case tray.EventCancelSignIn:
		switch c.status.(type) {
		case Disconnected, RetryingConnection, WaitingForPortal:
			common.LogInfo("Signing out to cancel sign-in")
			return c.signOut()
		case WaitingForTunnel:
			common.LogDebug("Tunnel is already coming up, signing out anyway")
			return c.signOut()
		case Quitting:
			common.LogError("Can't cancel sign-in while quitting")
		case TunnelReady:
			common.LogError("Can't cancel sign-in, the tunnel is already up")
		}

	case tray.EventAddFavorite:
		c.settings.AddFavorite(ev.ResourceID)
		c.saveSettings()
		c.refreshTrayMenu()

	case tray.EventRemoveFavorite:
		c.settings.RemoveFavorite(ev.ResourceID)
		c.saveSettings()
		c.refreshTrayMenu()

	case tray.EventAdminPortal:
		c.logFailure("open admin portal", c.integration.OpenURL(c.settings.AuthBaseURL))

	case tray.EventCopy:
		c.logFailure("copy to clipboard", c.integration.CopyToClipboard(ev.Text))

	case tray.EventRetryPortalConnection:
		return c.tryRetryConnection()

	case tray.EventEnableInternetResource:
		c.settings.SetInternetResource(true)
		return c.updateDisabledResources()

	case tray.EventDisableInternetResource:
		c.settings.SetInternetResource(false)
		return c.updateDisabledResources()

	case tray.EventShowWindow:
		c.logFailure("show window", c.integration.ShowWindow(ev.Window))
		// Handy for checking stability on test machines without reading the
		// whole log.
		info := c.uptime.info()
		common.LogDebug("Uptime %ds, run ID %s", int64(info.Uptime.Seconds()), info.RunID)

	case tray.EventURL:
		c.logFailure("open URL", c.integration.OpenURL(ev.URL))

	case tray.EventQuit:
		common.LogInfo("User clicked Quit in the menu")
		c.status = Quitting{}
		if err := c.send(ipc.Disconnect{}); err != nil {
			return err
		}
		c.refreshTrayMenu()

	default:
		common.LogWarn("Ignoring unknown tray event %T", ev)
	}
	return nil
}

// handleNewInstance always acknowledges, whatever happens to the message.
func (c *Controller) handleNewInstance(in arbiter.Incoming) {
	switch {
	case in.Err != nil:
		common.LogDebug("Couldn't read message from new instance: %v", in.Err)
	case in.Msg != nil:
		c.handleArbiterMsg(in.Msg)
	}

	if in.Ack == nil {
		return
	}
	if err := in.Ack(); err != nil {
		common.LogDebug("Couldn't ack new instance: %v", err)
	}
}

func (c *Controller) handleArbiterMsg(msg arbiter.Msg) {
	switch msg := msg.(type) {
	case arbiter.Deeplink:
		err := c.handleDeepLink(msg.URL)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrNoInflightRequest):
			common.LogDebug("Ignoring deep link, no sign-in in progress")
		default:
			common.LogError("Couldn't handle deep link: %v", err)
		}
	case arbiter.NewInstance:
		c.logFailure("show welcome window", c.integration.SetWelcomeWindowVisible(true, c.auth.Session()))
	}
}

func (c *Controller) handleDeepLink(url string) error {
	resp, err := deeplink.ParseAuthCallback(url)
	if err != nil {
		return fmt.Errorf("parse deep link: %w", err)
	}
	common.LogInfo("Received sign-in callback")

	token, err := c.auth.HandleResponse(resp)
	if err != nil {
		return fmt.Errorf("handle auth response: %w", err)
	}

	if err := c.updateTelemetryContext(); err != nil {
		return err
	}
	return c.startSession(token)
}

// handleUpdateNotification sets, or with nil clears, the available release.
func (c *Controller) handleUpdateNotification(n *updates.Notification) {
	if n == nil {
		c.availableRelease = nil
		c.refreshTrayMenu()
		return
	}

	release := n.Release
	c.availableRelease = &release
	c.refreshTrayMenu()

	if n.TellUser {
		title := fmt.Sprintf("%s %s available for download", common.AppName, release.Version)
		c.logFailure("show update notification",
			c.integration.ShowUpdateNotification(c.requestsTx, title, release.DownloadURL))
	}
}
