package controller

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/vpn-client/arbiter"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/netwatch"
	"github.com/yllada/vpn-client/tray"
	"github.com/yllada/vpn-client/updates"
)

func TestNew_MissingCollaborators(t *testing.T) {
	tests := []struct {
		name  string
		strip func(*Config)
	}{
		{"integration", func(c *Config) { c.Integration = nil }},
		{"auth", func(c *Config) { c.Auth = nil }},
		{"service", func(c *Config) { c.Service = nil }},
		{"settings", func(c *Config) { c.Settings = nil }},
		{"settings store", func(c *Config) { c.SettingsStore = nil }},
		{"ran before", func(c *Config) { c.RanBefore = nil }},
		{"logs", func(c *Config) { c.Logs = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newFixture().config()
			tt.strip(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestConnectHappyPath(t *testing.T) {
	c, f := newTestController(t)
	f.signedIn()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return start }
	token := common.NewSecret("T")

	require.NoError(t, c.startSession(token))
	assert.Equal(t, []ipc.ClientMsg{ipc.Connect{APIURL: common.DefaultAPIURL, Token: token}}, f.service.take())
	assert.Equal(t, WaitingForPortal{StartTime: start, Token: token}, c.status)
	assert.Equal(t, 1, f.integration.signedIn)

	stop, err := c.handleServiceMsg(context.Background(), ipc.ConnectResult{})
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Equal(t, WaitingForTunnel{StartTime: start}, c.status)
	assert.Equal(t, 1, f.ranBefore.sets)

	_, err = c.handleServiceMsg(context.Background(), ipc.TunnelReady{})
	require.NoError(t, err)
	assert.Equal(t, TunnelReady{}, c.status)
	assert.Empty(t, c.status.(TunnelReady).Resources)
	assert.Contains(t, f.integration.notifications, common.AppName+" connected")
	assert.IsType(t, tray.SignedIn{}, f.integration.lastMenu().Connlib)
}

func TestStartSession_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   error
	}{
		{"quitting", Quitting{}, common.ErrQuitting},
		{"tunnel ready", TunnelReady{}, common.ErrAlreadyConnected},
		{"waiting for portal", WaitingForPortal{Token: common.NewSecret("old")}, common.ErrAlreadyConnecting},
		{"waiting for tunnel", WaitingForTunnel{}, common.ErrAlreadyConnecting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newTestController(t)
			c.status = tt.status

			err := c.startSession(common.NewSecret("T"))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.status, c.status)
			assert.Empty(t, f.service.take())
		})
	}
}

func TestConnectIOErrorRetriesOnNetworkChange(t *testing.T) {
	c, f := newTestController(t)
	f.signedIn()
	token := common.NewSecret("T")
	c.status = WaitingForPortal{StartTime: time.Now(), Token: token}

	_, err := c.handleServiceMsg(context.Background(), ipc.ConnectResult{
		Err: &ipc.ConnectError{Kind: ipc.ConnectErrorIO, Message: "no route"},
	})
	require.NoError(t, err)
	assert.Equal(t, RetryingConnection{Token: token}, c.status)
	assert.IsType(t, tray.RetryingConnection{}, f.integration.lastMenu().Connlib)

	_, err = c.handleTick(context.Background(), networkTick{ok: true})
	require.NoError(t, err)

	// No Reset: a retrying session has no tunnel to reset.
	sent := f.service.take()
	require.Len(t, sent, 1)
	assert.Equal(t, ipc.Connect{APIURL: common.DefaultAPIURL, Token: token}, sent[0])
	assert.IsType(t, WaitingForPortal{}, c.status)
}

func TestConnectOtherErrorSignsOut(t *testing.T) {
	c, f := newTestController(t)
	f.signedIn()
	c.status = WaitingForPortal{Token: common.NewSecret("T")}

	_, err := c.handleServiceMsg(context.Background(), ipc.ConnectResult{
		Err: &ipc.ConnectError{Kind: ipc.ConnectErrorOther, Message: "bad token"},
	})
	require.NoError(t, err)
	assert.Equal(t, Disconnected{}, c.status)
	assert.Equal(t, []ipc.ClientMsg{ipc.Disconnect{}}, f.service.take())
	assert.Equal(t, 1, f.auth.signOuts)
	assert.Equal(t, 1, f.integration.signedOut)
}

func TestConnectResultIgnoredOutsideWaitingForPortal(t *testing.T) {
	c, f := newTestController(t)
	c.status = TunnelReady{}

	_, err := c.handleServiceMsg(context.Background(), ipc.ConnectResult{})
	require.NoError(t, err)
	assert.Equal(t, TunnelReady{}, c.status)
	assert.Zero(t, f.ranBefore.sets)
}

func TestDNSChangeWhileConnected(t *testing.T) {
	c, f := newTestController(t)
	c.status = TunnelReady{}

	_, err := c.handleTick(context.Background(), dnsTick{ok: true})
	require.NoError(t, err)
	assert.Equal(t, []ipc.ClientMsg{ipc.SetDNS{Resolvers: f.resolvers}}, f.service.take())
	assert.Equal(t, TunnelReady{}, c.status)
}

func TestNetworkChangeForwarding(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   []ipc.ClientMsg
	}{
		{"tunnel ready", TunnelReady{}, []ipc.ClientMsg{ipc.Reset{}}},
		{"waiting for portal", WaitingForPortal{}, []ipc.ClientMsg{ipc.Reset{}}},
		{"waiting for tunnel", WaitingForTunnel{}, []ipc.ClientMsg{ipc.Reset{}}},
		{"disconnected", Disconnected{}, nil},
		{"quitting", Quitting{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newTestController(t)
			c.status = tt.status

			_, err := c.handleTick(context.Background(), networkTick{ok: true})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.service.take())
			assert.Equal(t, tt.status, c.status)
		})
	}
}

func TestDNSChangeResolverErrorIsLogged(t *testing.T) {
	c, f := newTestController(t)
	c.status = TunnelReady{}
	c.resolvers = func() ([]netip.Addr, error) { return nil, errors.New("no resolv.conf") }

	_, err := c.handleTick(context.Background(), dnsTick{ok: true})
	require.NoError(t, err)
	assert.Empty(t, f.service.take())
}

func TestNotifierErrorIsFatal(t *testing.T) {
	c, _ := newTestController(t)

	_, err := c.handleTick(context.Background(), networkTick{ev: netwatch.Event{Err: errors.New("dbus gone")}, ok: true})
	assert.Error(t, err)

	_, err = c.handleTick(context.Background(), dnsTick{})
	assert.ErrorIs(t, err, ErrNotifierClosed)
}

func TestResourceUpdates(t *testing.T) {
	resources := []ipc.Resource{
		{ID: "r1", Name: "Wiki", Address: "wiki.example.com", Type: ipc.ResourceDNS},
		{ID: "inet", Name: "Internet", Type: ipc.ResourceInternet},
	}

	t.Run("dropped while disconnected", func(t *testing.T) {
		c, f := newTestController(t)
		_, err := c.handleServiceMsg(context.Background(), ipc.OnUpdateResources{Resources: resources})
		require.NoError(t, err)
		assert.Equal(t, Disconnected{}, c.status)
		assert.Empty(t, f.service.take())
	})

	t.Run("dropped while waiting for portal", func(t *testing.T) {
		c, _ := newTestController(t)
		c.status = WaitingForPortal{}
		_, err := c.handleServiceMsg(context.Background(), ipc.OnUpdateResources{Resources: resources})
		require.NoError(t, err)
		assert.Equal(t, WaitingForPortal{}, c.status)
	})

	t.Run("accepted while waiting for tunnel", func(t *testing.T) {
		c, f := newTestController(t)
		f.signedIn()
		c.status = WaitingForTunnel{}

		_, err := c.handleServiceMsg(context.Background(), ipc.OnUpdateResources{Resources: resources})
		require.NoError(t, err)
		assert.Equal(t, TunnelReady{Resources: resources}, c.status)
		// The Internet resource is off by default.
		assert.Equal(t, []ipc.ClientMsg{ipc.SetDisabledResources{IDs: []string{"inet"}}}, f.service.take())

		menu, ok := f.integration.lastMenu().Connlib.(tray.SignedIn)
		require.True(t, ok)
		assert.Equal(t, "Jane Doe", menu.ActorName)
		assert.Equal(t, resources, menu.Resources)
	})
}

func TestInternetResourceToggle(t *testing.T) {
	c, f := newTestController(t)
	f.signedIn()
	c.status = TunnelReady{Resources: []ipc.Resource{{ID: "inet", Type: ipc.ResourceInternet}}}

	require.NoError(t, c.handleRequest(TrayEvent{Event: tray.EventEnableInternetResource{}}))
	assert.Equal(t, []ipc.ClientMsg{ipc.SetDisabledResources{IDs: []string{}}}, f.service.take())
	require.NotEmpty(t, f.settings.saved)
	assert.True(t, f.settings.saved[len(f.settings.saved)-1].InternetResourceOn())

	require.NoError(t, c.handleRequest(TrayEvent{Event: tray.EventDisableInternetResource{}}))
	assert.Equal(t, []ipc.ClientMsg{ipc.SetDisabledResources{IDs: []string{"inet"}}}, f.service.take())
	assert.False(t, f.settings.saved[len(f.settings.saved)-1].InternetResourceOn())
}

func TestInternetResourceToggleWithoutTunnel(t *testing.T) {
	c, f := newTestController(t)

	require.NoError(t, c.handleRequest(TrayEvent{Event: tray.EventEnableInternetResource{}}))
	assert.Empty(t, f.service.take())
	assert.Len(t, f.settings.saved, 1)
}

func TestFavorites(t *testing.T) {
	c, f := newTestController(t)

	require.NoError(t, c.handleRequest(TrayEvent{Event: tray.EventAddFavorite{ResourceID: "r1"}}))
	assert.True(t, c.settings.IsFavorite("r1"))
	assert.True(t, f.settings.saved[0].IsFavorite("r1"))

	require.NoError(t, c.handleRequest(TrayEvent{Event: tray.EventRemoveFavorite{ResourceID: "r1"}}))
	assert.False(t, c.settings.IsFavorite("r1"))
	assert.Len(t, f.settings.saved, 2)
}

func TestQuitWaitsForGracefulDisconnect(t *testing.T) {
	c, f := newTestController(t)
	f.signedIn()
	c.status = TunnelReady{}

	require.NoError(t, c.handleRequest(TrayEvent{Event: tray.EventQuit{}}))
	assert.Equal(t, Quitting{}, c.status)
	assert.Equal(t, []ipc.ClientMsg{ipc.Disconnect{}}, f.service.take())
	assert.IsType(t, tray.Quitting{}, f.integration.lastMenu().Connlib)

	// Nothing may reconnect while quitting.
	assert.ErrorIs(t, c.startSession(common.NewSecret("T")), common.ErrQuitting)
	_, err := c.handleTick(context.Background(), networkTick{ok: true})
	require.NoError(t, err)
	require.NoError(t, c.signOut())
	assert.Empty(t, f.service.take())

	stop, err := c.handleServiceMsg(context.Background(), ipc.OnUpdateResources{})
	require.NoError(t, err)
	assert.False(t, stop)

	stop, err = c.handleServiceMsg(context.Background(), ipc.DisconnectedGracefully{})
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestDisconnectedGracefullyOutsideQuitting(t *testing.T) {
	c, _ := newTestController(t)

	stop, err := c.handleServiceMsg(context.Background(), ipc.DisconnectedGracefully{})
	require.NoError(t, err)
	assert.False(t, stop)
}

func TestOnDisconnect(t *testing.T) {
	tests := []struct {
		name      string
		msg       ipc.OnDisconnect
		wantTitle string
	}{
		{"auth error", ipc.OnDisconnect{ErrorMsg: "token expired", IsAuthenticationError: true}, common.AppName + " disconnected"},
		{"other error", ipc.OnDisconnect{ErrorMsg: "tunnel died"}, common.AppName + " error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newTestController(t)
			f.signedIn()
			c.status = TunnelReady{}

			_, err := c.handleServiceMsg(context.Background(), tt.msg)
			require.NoError(t, err)
			assert.Equal(t, Disconnected{}, c.status)
			assert.Equal(t, []ipc.ClientMsg{ipc.Disconnect{}}, f.service.take())
			assert.Equal(t, []string{tt.wantTitle}, f.integration.notifications)
			assert.Nil(t, f.auth.session)
		})
	}
}

func TestTerminatingGracefully(t *testing.T) {
	c, f := newTestController(t)
	c.status = TunnelReady{}

	stop, err := c.handleServiceMsg(context.Background(), ipc.TerminatingGracefully{})
	require.NoError(t, err)
	assert.True(t, stop)
	assert.Equal(t, []tray.Icon{tray.IconTerminating()}, f.integration.icons)
}

func TestTunnelReadyIgnored(t *testing.T) {
	for _, s := range []Status{Disconnected{}, Quitting{}} {
		c, _ := newTestController(t)
		c.status = s
		_, err := c.handleServiceMsg(context.Background(), ipc.TunnelReady{})
		require.NoError(t, err)
		assert.Equal(t, s, c.status)
	}

	c, _ := newTestController(t)
	resources := []ipc.Resource{{ID: "r1"}}
	c.status = TunnelReady{Resources: resources}
	_, err := c.handleServiceMsg(context.Background(), ipc.TunnelReady{})
	require.NoError(t, err)
	assert.Equal(t, TunnelReady{Resources: resources}, c.status)
}

func TestClearLogs(t *testing.T) {
	c, f := newTestController(t)

	first := make(chan error, 1)
	require.NoError(t, c.handleRequest(ClearLogs{Result: first}))
	assert.Equal(t, []ipc.ClientMsg{ipc.ClearLogs{}}, f.service.take())
	assert.Equal(t, 1, f.logs.cleared)

	second := make(chan error, 1)
	require.NoError(t, c.handleRequest(ClearLogs{Result: second}))
	assert.Error(t, <-first)

	_, err := c.handleServiceMsg(context.Background(), ipc.ClearedLogs{})
	require.NoError(t, err)
	assert.NoError(t, <-second)
	assert.Nil(t, c.clearLogsResult)

	// Nobody is waiting any more.
	_, err = c.handleServiceMsg(context.Background(), ipc.ClearedLogs{Err: "late"})
	assert.NoError(t, err)
}

func TestClearLogsServiceError(t *testing.T) {
	c, _ := newTestController(t)

	result := make(chan error, 1)
	require.NoError(t, c.handleRequest(ClearLogs{Result: result}))
	_, err := c.handleServiceMsg(context.Background(), ipc.ClearedLogs{Err: "permission denied"})
	require.NoError(t, err)
	assert.ErrorContains(t, <-result, "permission denied")
}

func TestExportLogs(t *testing.T) {
	c, f := newTestController(t)

	result := make(chan error, 1)
	require.NoError(t, c.handleRequest(ExportLogs{Path: "/tmp/logs.zip", Stem: "logs", Result: result}))
	assert.NoError(t, <-result)
	assert.Equal(t, []string{"/tmp/logs.zip"}, f.logs.exported)

	f.logs.err = errors.New("disk full")
	require.NoError(t, c.handleRequest(ExportLogs{Path: "/tmp/logs.zip", Result: result}))
	assert.Error(t, <-result)
}

func TestApplySettings(t *testing.T) {
	c, f := newTestController(t)

	s := config.DefaultSettings()
	s.LogFilter = "debug"
	result := make(chan error, 1)
	require.NoError(t, c.handleRequest(ApplySettings{Settings: s, Result: result}))
	require.NoError(t, <-result)

	assert.Equal(t, []string{"debug"}, f.logs.filters)
	assert.Equal(t, []ipc.ClientMsg{ipc.ApplyLogFilter{Directives: "debug"}}, f.service.take())

	got := make(chan *config.Settings, 1)
	require.NoError(t, c.handleRequest(GetSettings{Result: got}))
	assert.Equal(t, "debug", (<-got).LogFilter)
}

func TestApplySettingsSaveError(t *testing.T) {
	c, f := newTestController(t)
	f.settings.err = errors.New("read-only")

	result := make(chan error, 1)
	require.NoError(t, c.handleRequest(ApplySettings{Settings: config.DefaultSettings(), Result: result}))
	assert.Error(t, <-result)
	assert.Empty(t, f.service.take())
}

func TestFailRequests(t *testing.T) {
	c, _ := newTestController(t)

	assert.ErrorIs(t, c.handleRequest(Fail{Failure: FailureError}), ErrTestError)
	assert.Panics(t, func() { _ = c.handleRequest(Fail{Failure: FailurePanic}) })
}

func TestSignOutWhileRetrying(t *testing.T) {
	c, f := newTestController(t)
	f.signedIn()
	c.status = RetryingConnection{Token: common.NewSecret("T")}

	require.NoError(t, c.handleRequest(SignOut{}))

	assert.Equal(t, Disconnected{}, c.status)
	assert.Equal(t, []ipc.ClientMsg{ipc.Disconnect{}}, f.service.take())
	assert.Nil(t, f.auth.Session())
	assert.IsType(t, tray.SignedOut{}, f.integration.lastMenu().Connlib)
}

func TestSignOutWhileQuitting(t *testing.T) {
	c, f := newTestController(t)
	c.status = Quitting{}

	require.NoError(t, c.handleRequest(SignOut{}))

	assert.Equal(t, Quitting{}, c.status)
	assert.Empty(t, f.service.take())
	assert.Zero(t, f.auth.signOuts)
}

func TestCancelSignIn(t *testing.T) {
	tests := []struct {
		name       string
		status     Status
		wantStatus Status
	}{
		{"disconnected", Disconnected{}, Disconnected{}},
		{"retrying", RetryingConnection{Token: common.NewSecret("T")}, Disconnected{}},
		{"waiting for portal", WaitingForPortal{}, Disconnected{}},
		{"waiting for tunnel", WaitingForTunnel{}, Disconnected{}},
		{"tunnel ready", TunnelReady{}, TunnelReady{}},
		{"quitting", Quitting{}, Quitting{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t)
			c.status = tt.status
			require.NoError(t, c.handleRequest(TrayEvent{Event: tray.EventCancelSignIn{}}))
			assert.Equal(t, tt.wantStatus, c.status)
		})
	}
}

func TestSignInOpensBrowser(t *testing.T) {
	c, f := newTestController(t)

	require.NoError(t, c.handleRequest(SignIn{}))
	require.Len(t, f.integration.urls, 1)
	assert.Contains(t, f.integration.urls[0], "state=st")
	assert.Equal(t, []bool{false}, f.integration.welcome)
	assert.IsType(t, tray.WaitingForBrowser{}, f.integration.lastMenu().Connlib)
}

func TestDeepLinkStartsSession(t *testing.T) {
	c, f := newTestController(t)
	_, err := f.auth.StartSignIn()
	require.NoError(t, err)

	acked := false
	c.handleNewInstance(arbiter.Incoming{
		Msg: arbiter.Deeplink{URL: "vpn-client://handle_client_sign_in_callback?account_slug=acme&actor_name=Jane&fragment=frag&state=st"},
		Ack: func() error { acked = true; return nil },
	})
	assert.True(t, acked)

	sent := f.service.take()
	require.Len(t, sent, 2)
	slug := "acme"
	assert.Equal(t, ipc.StartTelemetry{Environment: common.DefaultAPIURL, Release: "1.0.0", AccountSlug: &slug}, sent[0])
	assert.Equal(t, ipc.Connect{APIURL: common.DefaultAPIURL, Token: common.NewSecret("nonce-frag")}, sent[1])
	assert.IsType(t, WaitingForPortal{}, c.status)
}

func TestNewInstanceAlwaysAcked(t *testing.T) {
	tests := []struct {
		name string
		in   arbiter.Incoming
	}{
		{"unparseable deep link", arbiter.Incoming{Msg: arbiter.Deeplink{URL: "::not a url"}}},
		{"deep link without sign-in", arbiter.Incoming{Msg: arbiter.Deeplink{URL: "vpn-client://handle_client_sign_in_callback?account_slug=a&actor_name=b&fragment=c&state=d"}}},
		{"read error", arbiter.Incoming{Err: errors.New("garbage")}},
		{"new instance", arbiter.Incoming{Msg: arbiter.NewInstance{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newTestController(t)
			acks := 0
			tt.in.Ack = func() error { acks++; return nil }

			c.handleNewInstance(tt.in)
			assert.Equal(t, 1, acks)
			assert.Equal(t, Disconnected{}, c.status)
			assert.Empty(t, f.service.take())
		})
	}
}

func TestUpdateNotifications(t *testing.T) {
	c, f := newTestController(t)
	release := updates.Release{Version: semver.MustParse("1.2.3"), DownloadURL: "https://example.com/dl"}

	c.handleUpdateNotification(&updates.Notification{Release: release, TellUser: true})
	assert.Equal(t, &release, f.integration.lastMenu().Release)
	assert.Equal(t, []string{common.AppName + " 1.2.3 available for download"}, f.integration.updates)

	c.handleUpdateNotification(&updates.Notification{Release: release})
	assert.Len(t, f.integration.updates, 1)

	c.handleUpdateNotification(nil)
	assert.Nil(t, f.integration.lastMenu().Release)

	require.NoError(t, c.handleRequest(UpdateNotificationClicked{URL: release.DownloadURL}))
	assert.Equal(t, []string{release.DownloadURL}, f.integration.urls)
}

func TestConnlibState(t *testing.T) {
	c, f := newTestController(t)
	assert.Equal(t, tray.SignedOut{}, c.connlibState())

	_, err := f.auth.StartSignIn()
	require.NoError(t, err)
	assert.Equal(t, tray.WaitingForBrowser{}, c.connlibState())

	// A session without a tunnel session shows signed out.
	f.signedIn()
	assert.Equal(t, tray.SignedOut{}, c.connlibState())

	c.status = WaitingForTunnel{}
	assert.Equal(t, tray.WaitingForTunnel{}, c.connlibState())
}

func TestNextTickPriority(t *testing.T) {
	c, f := newTestController(t)

	dns := make(chan netwatch.Event, 1)
	network := make(chan netwatch.Event, 1)
	upd := make(chan *updates.Notification, 1)
	arb := make(chan arbiter.Incoming, 1)
	c.dns, c.network, c.updates, c.arbiter = dns, network, upd, arb

	// Fill from lowest to highest so arrival order can't explain the result.
	arb <- arbiter.Incoming{Msg: arbiter.NewInstance{}}
	upd <- nil
	f.requests <- SignIn{}
	f.service.msgs <- ipc.Received{Msg: ipc.Hello{}}
	network <- netwatch.Event{}
	dns <- netwatch.Event{}

	for _, want := range []interface{}{dnsTick{}, networkTick{}, serviceTick{}, requestTick{}, updateTick{}, arbiterTick{}} {
		assert.IsType(t, want, c.nextTick())
	}
}

func TestRun_ClosedSourcesAreFatal(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fixture, *Config)
		want  error
	}{
		{"service", func(f *fixture, _ *Config) { close(f.service.msgs) }, ErrServiceClosed},
		{"updates", func(_ *fixture, cfg *Config) {
			ch := make(chan *updates.Notification)
			close(ch)
			cfg.Updates = ch
		}, ErrUpdatesStopped},
		{"arbiter", func(_ *fixture, cfg *Config) {
			ch := make(chan arbiter.Incoming)
			close(ch)
			cfg.Arbiter = ch
		}, ErrArbiterClosed},
		{"network", func(_ *fixture, cfg *Config) {
			ch := make(chan netwatch.Event)
			close(ch)
			cfg.Network = ch
		}, ErrNotifierClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			cfg := f.config()
			tt.setup(f, &cfg)
			c, err := New(cfg)
			require.NoError(t, err)

			assert.ErrorIs(t, c.Run(context.Background()), tt.want)
			assert.True(t, f.service.closed)
		})
	}
}

func TestRun_FailErrorEndsLoop(t *testing.T) {
	c, f := newTestController(t)
	f.requests <- Fail{Failure: FailureError}

	assert.ErrorIs(t, c.Run(context.Background()), ErrTestError)
}

func TestRun_StartupAndQuit(t *testing.T) {
	f := newFixture()
	f.signedIn()
	c, err := New(f.config())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	f.requests <- TrayEvent{Event: tray.EventQuit{}}
	require.Eventually(t, func() bool {
		f.service.mu.Lock()
		defer f.service.mu.Unlock()
		for _, m := range f.service.sent {
			if _, ok := m.(ipc.Disconnect); ok {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	f.service.msgs <- ipc.Received{Msg: ipc.DisconnectedGracefully{}}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	sent := f.service.take()
	require.GreaterOrEqual(t, len(sent), 3)
	assert.IsType(t, ipc.StartTelemetry{}, sent[0])
	assert.Equal(t, ipc.Connect{APIURL: common.DefaultAPIURL, Token: common.NewSecret("tok")}, sent[1])
	assert.Equal(t, ipc.Disconnect{}, sent[len(sent)-1])
	assert.Equal(t, []bool{true}, f.integration.welcome)
	assert.True(t, f.service.closed)
}

func TestRun_DeepLinkHandoffOverArbiter(t *testing.T) {
	f := newFixture()
	f.ranBefore.ran = true
	a, b := ipc.Pipe()
	server := arbiter.NewServer(b)
	defer server.Close()

	cfg := f.config()
	cfg.Arbiter = server.Incoming()
	c, err := New(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	// The running instance acks even though the link is garbage.
	err = arbiter.Handoff(context.Background(), a, arbiter.Deeplink{URL: "not-a-callback"}, 2*time.Second)
	require.NoError(t, err)

	close(f.requests)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, f.integration.welcome)
}
