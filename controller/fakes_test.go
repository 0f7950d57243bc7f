package controller

import (
	"context"
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yllada/vpn-client/auth"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/deeplink"
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/tray"
)

type fakeIntegration struct {
	mu sync.Mutex

	welcome       []bool
	signedIn      int
	signedOut     int
	urls          []string
	icons         []tray.Icon
	menus         []tray.AppState
	notifications []string
	updates       []string
	windows       []tray.Window
	clipboard     []string
}

func (f *fakeIntegration) SetWelcomeWindowVisible(visible bool, _ *auth.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcome = append(f.welcome, visible)
	return nil
}

func (f *fakeIntegration) NotifySignedIn(*auth.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedIn++
	return nil
}

func (f *fakeIntegration) NotifySignedOut() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut++
	return nil
}

func (f *fakeIntegration) OpenURL(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return nil
}

func (f *fakeIntegration) SetTrayIcon(icon tray.Icon) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.icons = append(f.icons, icon)
}

func (f *fakeIntegration) SetTrayMenu(state tray.AppState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus = append(f.menus, state)
}

func (f *fakeIntegration) ShowNotification(title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, title)
	return nil
}

func (f *fakeIntegration) ShowUpdateNotification(_ chan<- Request, title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, title)
	return nil
}

func (f *fakeIntegration) ShowWindow(w tray.Window) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, w)
	return nil
}

func (f *fakeIntegration) CopyToClipboard(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clipboard = append(f.clipboard, text)
	return nil
}

func (f *fakeIntegration) lastMenu() tray.AppState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.menus) == 0 {
		return tray.AppState{}
	}
	return f.menus[len(f.menus)-1]
}

// fakeAuth derives the token from nonce and fragment like the real store.
type fakeAuth struct {
	session  *auth.Session
	token    common.Secret
	hasToken bool
	ongoing  *auth.Request
	signOuts int
}

func (f *fakeAuth) Token() (common.Secret, bool, error) {
	return f.token, f.hasToken, nil
}

func (f *fakeAuth) Session() *auth.Session        { return f.session }
func (f *fakeAuth) OngoingRequest() *auth.Request { return f.ongoing }

func (f *fakeAuth) StartSignIn() (*auth.Request, error) {
	if f.session != nil {
		return nil, nil
	}
	f.ongoing = &auth.Request{Nonce: common.NewSecret("nonce-"), State: common.NewSecret("st")}
	return f.ongoing, nil
}

func (f *fakeAuth) HandleResponse(resp *deeplink.AuthResponse) (common.Secret, error) {
	if f.ongoing == nil {
		return common.Secret{}, auth.ErrNoInflightRequest
	}
	if !resp.State.Equal(f.ongoing.State) {
		return common.Secret{}, auth.ErrStateMismatch
	}
	f.token = common.NewSecret(f.ongoing.Nonce.Expose() + resp.Fragment.Expose())
	f.hasToken = true
	f.session = &auth.Session{ActorName: resp.ActorName, AccountSlug: resp.AccountSlug}
	f.ongoing = nil
	return f.token, nil
}

func (f *fakeAuth) SignOut() error {
	f.signOuts++
	f.session = nil
	f.ongoing = nil
	f.hasToken = false
	return nil
}

type fakeService struct {
	mu      sync.Mutex
	sent    []ipc.ClientMsg
	msgs    chan ipc.Received
	sendErr error
	closed  bool
}

func newFakeService() *fakeService {
	return &fakeService{msgs: make(chan ipc.Received, 16)}
}

func (f *fakeService) Send(msg ipc.ClientMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeService) Messages() <-chan ipc.Received { return f.msgs }

func (f *fakeService) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// take returns and forgets everything sent so far.
func (f *fakeService) take() []ipc.ClientMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent := f.sent
	f.sent = nil
	return sent
}

type fakeRanBefore struct {
	ran  bool
	sets int
}

func (f *fakeRanBefore) RanBefore(context.Context) (bool, error) { return f.ran, nil }

func (f *fakeRanBefore) SetRanBefore(context.Context) error {
	f.ran = true
	f.sets++
	return nil
}

type fakeSettingsStore struct {
	saved []*config.Settings
	err   error
}

func (f *fakeSettingsStore) Save(s *config.Settings) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s.Clone())
	return nil
}

type fakeLogs struct {
	filters  []string
	cleared  int
	exported []string
	err      error
}

func (f *fakeLogs) ApplyFilter(filter string) error {
	if f.err != nil {
		return f.err
	}
	f.filters = append(f.filters, filter)
	return nil
}

func (f *fakeLogs) ClearLogs() error {
	f.cleared++
	return f.err
}

func (f *fakeLogs) ExportLogs(path, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.exported = append(f.exported, path)
	return nil
}

type fixture struct {
	integration *fakeIntegration
	auth        *fakeAuth
	service     *fakeService
	ranBefore   *fakeRanBefore
	settings    *fakeSettingsStore
	logs        *fakeLogs
	resolvers   []netip.Addr

	requests chan Request
}

func newFixture() *fixture {
	return &fixture{
		integration: &fakeIntegration{},
		auth:        &fakeAuth{},
		service:     newFakeService(),
		ranBefore:   &fakeRanBefore{},
		settings:    &fakeSettingsStore{},
		logs:        &fakeLogs{},
		resolvers:   []netip.Addr{netip.MustParseAddr("192.0.2.53")},
		requests:    make(chan Request, 16),
	}
}

func (f *fixture) config() Config {
	return Config{
		Integration:   f.integration,
		Auth:          f.auth,
		Service:       f.service,
		Settings:      config.DefaultSettings(),
		SettingsStore: f.settings,
		RanBefore:     f.ranBefore,
		Logs:          f.logs,
		Requests:      f.requests,
		RequestsTx:    f.requests,
		Resolvers:     func() ([]netip.Addr, error) { return f.resolvers, nil },
		Release:       "1.0.0",
	}
}

func newTestController(t *testing.T) (*Controller, *fixture) {
	t.Helper()
	f := newFixture()
	c, err := New(f.config())
	require.NoError(t, err)
	return c, f
}

// signedIn gives the fixture an auth session, as after a deep link.
func (f *fixture) signedIn() {
	f.auth.session = &auth.Session{ActorName: "Jane Doe", AccountSlug: "acme"}
	f.auth.token = common.NewSecret("tok")
	f.auth.hasToken = true
}
