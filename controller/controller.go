// Package controller runs the GUI's connection state machine. A single
// goroutine owns all state and reacts to ticks from the tunnel service, the
// OS network and DNS notifiers, UI requests, the update checker and newly
// launched instances.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/yllada/vpn-client/arbiter"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/netwatch"
	"github.com/yllada/vpn-client/tray"
	"github.com/yllada/vpn-client/updates"
)

// Fatal loop errors.
var (
	ErrServiceClosed  = errors.New("tunnel service connection closed")
	ErrUpdatesStopped = errors.New("update checker stopped")
	ErrArbiterClosed  = errors.New("instance arbiter closed")
	ErrNotifierClosed = errors.New("network notifier stopped")
	ErrTestError      = errors.New("test error")
)

// Config wires a Controller to its collaborators. Event channels left nil
// are never selected.
type Config struct {
	Integration   Integration
	Auth          Auth
	Service       ServiceConn
	Settings      *config.Settings
	SettingsStore SettingsStore
	RanBefore     RanBeforeStore
	Logs          LogControl

	// Requests is the inbound request queue. RequestsTx is its sending side,
	// handed to update notifications so clicks come back as requests.
	Requests   <-chan Request
	RequestsTx chan<- Request

	Updates <-chan *updates.Notification
	Arbiter <-chan arbiter.Incoming
	Network <-chan netwatch.Event
	DNS     <-chan netwatch.Event

	// Resolvers lists the system DNS servers. Defaults to
	// netwatch.SystemResolvers.
	Resolvers func() ([]netip.Addr, error)

	// Release is the running version, reported with telemetry.
	Release string
}

// Controller is the connection state machine. It is not safe for concurrent
// use; everything happens inside Run.
type Controller struct {
	integration   Integration
	auth          Auth
	service       ServiceConn
	settings      *config.Settings
	settingsStore SettingsStore
	ranBefore     RanBeforeStore
	logs          LogControl
	resolvers     func() ([]netip.Addr, error)
	release       string
	requestsTx    chan<- Request

	serviceMsgs <-chan ipc.Received
	requests    <-chan Request
	updates     <-chan *updates.Notification
	arbiter     <-chan arbiter.Incoming
	network     <-chan netwatch.Event
	dns         <-chan netwatch.Event

	status           Status
	availableRelease *updates.Release
	clearLogsResult  chan<- error
	uptime           *uptimeTracker
	now              func() time.Time
}

// New checks cfg and returns a controller in the Disconnected state.
func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Integration == nil:
		return nil, errors.New("controller: missing integration")
	case cfg.Auth == nil:
		return nil, errors.New("controller: missing auth")
	case cfg.Service == nil:
		return nil, errors.New("controller: missing tunnel service connection")
	case cfg.Settings == nil:
		return nil, errors.New("controller: missing settings")
	case cfg.SettingsStore == nil:
		return nil, errors.New("controller: missing settings store")
	case cfg.RanBefore == nil:
		return nil, errors.New("controller: missing ran-before store")
	case cfg.Logs == nil:
		return nil, errors.New("controller: missing log control")
	}

	resolvers := cfg.Resolvers
	if resolvers == nil {
		resolvers = netwatch.SystemResolvers
	}

	return &Controller{
		integration:   cfg.Integration,
		auth:          cfg.Auth,
		service:       cfg.Service,
		settings:      cfg.Settings.Clone(),
		settingsStore: cfg.SettingsStore,
		ranBefore:     cfg.RanBefore,
		logs:          cfg.Logs,
		resolvers:     resolvers,
		release:       cfg.Release,
		requestsTx:    cfg.RequestsTx,
		serviceMsgs:   cfg.Service.Messages(),
		requests:      cfg.Requests,
		updates:       cfg.Updates,
		arbiter:       cfg.Arbiter,
		network:       cfg.Network,
		dns:           cfg.DNS,
		status:        Disconnected{},
		uptime:        newUptimeTracker(),
		now:           time.Now,
	}, nil
}

// Run drives the event loop until the user quits, the tunnel service shuts
// down, the request queue closes, or a fatal error occurs. It always closes
// the service connection before returning.
//
// ctx is used for store access only. Run does not stop when ctx is done;
// send a Quit tray event instead.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		if err := c.service.Close(); err != nil {
			common.LogError("Closing tunnel service connection: %v", err)
		}
	}()

	if err := c.updateTelemetryContext(); err != nil {
		return err
	}

	token, ok, err := c.auth.Token()
	if err != nil {
		return fmt.Errorf("load token during app start: %w", err)
	}
	if ok {
		if err := c.startSession(token); err != nil {
			return err
		}
	} else {
		common.LogInfo("No token on disk, starting in signed-out state")
		c.refreshTrayMenu()
	}

	ran, err := c.ranBefore.RanBefore(ctx)
	if err != nil {
		return fmt.Errorf("read ran-before marker: %w", err)
	}
	if !ran {
		c.logFailure("show welcome window", c.integration.SetWelcomeWindowVisible(true, c.auth.Session()))
	}

	for {
		stop, err := c.handleTick(ctx, c.nextTick())
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	common.LogDebug("Controller loop finished, closing")
	return nil
}

// handleTick applies one tick. stop is true when the loop should end
// cleanly.
func (c *Controller) handleTick(ctx context.Context, t interface{}) (stop bool, err error) {
	switch t := t.(type) {
	case dnsTick:
		if !t.ok {
			return false, fmt.Errorf("dns: %w", ErrNotifierClosed)
		}
		if t.ev.Err != nil {
			return false, fmt.Errorf("dns notifier: %w", t.ev.Err)
		}
		return false, c.onDNSChanged()

	case networkTick:
		if !t.ok {
			return false, fmt.Errorf("network: %w", ErrNotifierClosed)
		}
		if t.ev.Err != nil {
			return false, fmt.Errorf("network notifier: %w", t.ev.Err)
		}
		return false, c.onNetworkChanged()

	case serviceTick:
		if !t.ok {
			return false, ErrServiceClosed
		}
		if t.msg.Err != nil {
			return false, fmt.Errorf("read from tunnel service: %w", t.msg.Err)
		}
		return c.handleServiceMsg(ctx, t.msg.Msg)

	case requestTick:
		if !t.ok {
			common.LogWarn("Request channel closed, stopping controller")
			return true, nil
		}
		return false, c.handleRequest(t.req)

	case updateTick:
		if !t.ok {
			return false, ErrUpdatesStopped
		}
		c.handleUpdateNotification(t.n)
		return false, nil

	case arbiterTick:
		if !t.ok {
			return false, ErrArbiterClosed
		}
		c.handleNewInstance(t.in)
		return false, nil

	default:
		return false, fmt.Errorf("unknown tick %T", t)
	}
}

func (c *Controller) onNetworkChanged() error {
	if NeedsNetworkChanges(c.status) {
		common.LogDebug("Network changed, resetting tunnel")
		if err := c.send(ipc.Reset{}); err != nil {
			return err
		}
	}
	return c.tryRetryConnection()
}

func (c *Controller) onDNSChanged() error {
	if NeedsNetworkChanges(c.status) {
		resolvers, err := c.resolvers()
		if err != nil {
			common.LogError("Couldn't read system resolvers: %v", err)
		} else {
			common.LogDebug("New DNS resolvers %v", resolvers)
			if err := c.send(ipc.SetDNS{Resolvers: resolvers}); err != nil {
				return err
			}
		}
	}
	return c.tryRetryConnection()
}

// startSession sends Connect. It only proceeds from Disconnected or
// RetryingConnection.
func (c *Controller) startSession(token common.Secret) error {
	switch c.status.(type) {
	case Disconnected, RetryingConnection:
	case Quitting:
		return common.ErrQuitting
	case TunnelReady:
		return common.ErrAlreadyConnected
	case WaitingForPortal, WaitingForTunnel:
		return common.ErrAlreadyConnecting
	}

	apiURL := c.settings.APIURL
	common.LogInfo("Starting tunnel session with %s", apiURL)

	start := c.now()
	if err := c.send(ipc.Connect{APIURL: apiURL, Token: token}); err != nil {
		return err
	}
	c.status = WaitingForPortal{StartTime: start, Token: token}

	if session := c.auth.Session(); session != nil {
		c.logFailure("notify signed in", c.integration.NotifySignedIn(session))
	} else {
		common.LogError("Started a session without an auth session")
	}

	c.refreshTrayMenu()
	return nil
}

// tryRetryConnection restarts the session if a connect attempt failed
// earlier. It does nothing in any other state.
func (c *Controller) tryRetryConnection() error {
	retrying, ok := c.status.(RetryingConnection)
	if !ok {
		return nil
	}
	common.LogDebug("Retrying portal connection")
	return c.startSession(retrying.Token)
}

// signOut clears the session and tells the service to disconnect. It does
// nothing while quitting.
func (c *Controller) signOut() error {
	if _, ok := c.status.(Quitting); ok {
		return nil
	}
	c.logFailure("sign out", c.auth.SignOut())
	c.logFailure("notify signed out", c.integration.NotifySignedOut())
	c.status = Disconnected{}

	// Redundant if the service already disconnected on its own.
	if err := c.send(ipc.Disconnect{}); err != nil {
		return err
	}
	c.refreshTrayMenu()
	return nil
}

func (c *Controller) updateTelemetryContext() error {
	var slug *string
	if session := c.auth.Session(); session != nil {
		s := session.AccountSlug
		slug = &s
	}
	return c.send(ipc.StartTelemetry{
		Environment: c.settings.APIURL,
		Release:     c.release,
		AccountSlug: slug,
	})
}

// updateDisabledResources saves settings and tells the tunnel whether the
// Internet resource is off.
func (c *Controller) updateDisabledResources() error {
	c.saveSettings()

	internet, ok := internetResource(c.status)
	if !ok {
		return nil
	}

	ids := []string{}
	if !c.settings.InternetResourceOn() {
		ids = append(ids, internet.ID)
	}
	if err := c.send(ipc.SetDisabledResources{IDs: ids}); err != nil {
		return err
	}
	c.refreshTrayMenu()
	return nil
}

func (c *Controller) saveSettings() {
	c.logFailure("save settings", c.settingsStore.Save(c.settings))
}

// refreshTrayMenu rebuilds the tray from the current state.
func (c *Controller) refreshTrayMenu() {
	c.integration.SetTrayMenu(tray.AppState{
		Connlib: c.connlibState(),
		Release: c.availableRelease,
	})
}

func (c *Controller) connlibState() tray.ConnlibState {
	session := c.auth.Session()
	if session == nil {
		if c.auth.OngoingRequest() != nil {
			return tray.WaitingForBrowser{}
		}
		return tray.SignedOut{}
	}

	switch s := c.status.(type) {
	case Quitting:
		return tray.Quitting{}
	case RetryingConnection:
		return tray.RetryingConnection{}
	case WaitingForPortal:
		return tray.WaitingForPortal{}
	case WaitingForTunnel:
		return tray.WaitingForTunnel{}
	case TunnelReady:
		return tray.SignedIn{
			ActorName:               session.ActorName,
			FavoriteResources:       append([]string(nil), c.settings.FavoriteResources...),
			InternetResourceEnabled: c.settings.Clone().InternetResourceEnabled,
			Resources:               s.Resources,
		}
	default:
		common.LogError("Have an auth session but no tunnel session")
		return tray.SignedOut{}
	}
}

// send writes to the tunnel service. Failures are fatal to the loop.
func (c *Controller) send(msg ipc.ClientMsg) error {
	if err := c.service.Send(msg); err != nil {
		return fmt.Errorf("send to tunnel service: %w", err)
	}
	return nil
}

func (c *Controller) logFailure(what string, err error) {
	if err != nil {
		common.LogError("Couldn't %s: %v", what, err)
	}
}
