package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blang/semver/v4"
	"golang.org/x/sync/errgroup"

	"github.com/yllada/vpn-client/arbiter"
	"github.com/yllada/vpn-client/auth"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/controller"
	"github.com/yllada/vpn-client/keyring"
	"github.com/yllada/vpn-client/netwatch"
	"github.com/yllada/vpn-client/store"
	"github.com/yllada/vpn-client/tray"
	"github.com/yllada/vpn-client/ui"
	"github.com/yllada/vpn-client/updates"
)

const (
	requestQueueSize    = 16
	logRotationInterval = time.Minute
)

var errTrayExited = errors.New("system tray exited unexpectedly")

func (a *app) runGUI(ctx context.Context) error {
	if !a.opts.noElevationCheck {
		if err := checkElevation(); err != nil {
			return err
		}
	}

	var arbiterIn <-chan arbiter.Incoming
	if !a.opts.noDeepLinks {
		server, err := arbiter.Acquire(ctx, common.GUISocketName, arbiter.NewInstance{})
		if errors.Is(err, arbiter.ErrAlreadyRunning) {
			common.LogInfo("Another instance is running, handed over to it")
			return nil
		}
		if err != nil {
			return fmt.Errorf("single-instance check: %w", err)
		}
		defer server.Close()
		arbiterIn = server.Incoming()
	}

	requests := make(chan controller.Request, requestQueueSize)

	if a.opts.smokeTest {
		return a.runController(ctx, ui.Headless{}, requests, arbiterIn)
	}

	t := ui.NewTray(requests)
	desktop := ui.NewDesktop(ctx, t, a.info.Version, a.settingsPath)
	done := make(chan error, 1)
	t.Run(func() {
		go func() {
			done <- a.runController(ctx, desktop, requests, arbiterIn)
			t.Quit()
		}()
	})

	select {
	case err := <-done:
		return err
	default:
		return errTrayExited
	}
}

// runController wires the controller to real collaborators and runs it with
// the update checker and quit triggers beside it.
func (a *app) runController(ctx context.Context, integration controller.Integration, requests chan controller.Request, arbiterIn <-chan arbiter.Incoming) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	creds, err := keyring.New(keyring.DefaultService, "")
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	sessionPath, err := auth.DefaultSessionPath()
	if err != nil {
		return err
	}
	authStore, err := auth.New(creds, sessionPath)
	if err != nil {
		return err
	}

	dbPath, err := store.DefaultPath()
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	settingsStore, err := config.NewStore(a.settingsPath)
	if err != nil {
		return err
	}

	network, err := netwatch.NewNetworkNotifier(ctx)
	if err != nil {
		return fmt.Errorf("watch network: %w", err)
	}
	defer network.Close()
	dns, err := netwatch.NewDNSNotifier(ctx)
	if err != nil {
		return fmt.Errorf("watch DNS: %w", err)
	}
	defer dns.Close()

	service, err := controller.ConnectService(ctx, common.TunnelSocketName)
	if err != nil {
		return err
	}

	cfg := controller.Config{
		Integration:   integration,
		Auth:          authStore,
		Service:       service,
		Settings:      a.settings,
		SettingsStore: settingsStore,
		RanBefore:     db,
		Logs:          common.GetLogger(),
		Requests:      requests,
		RequestsTx:    requests,
		Arbiter:       arbiterIn,
		Network:       network.Events(),
		DNS:           dns.Events(),
		Release:       a.info.Version,
	}

	g, gctx := errgroup.WithContext(ctx)

	if checker := a.newChecker(db); checker != nil {
		ch := make(chan *updates.Notification)
		cfg.Updates = ch
		g.Go(func() error { return checker.Run(gctx, ch) })
	}

	ctrl, err := controller.New(cfg)
	if err != nil {
		_ = service.Close()
		cancel()
		_ = g.Wait()
		return err
	}

	if f, ok := a.opts.failure(); ok {
		requests <- controller.Fail{Failure: f}
	}

	g.Go(func() error {
		// Everything else winds down once the controller is done.
		defer cancel()
		return ctrl.Run(gctx)
	})
	g.Go(func() error { return forwardSignals(gctx, requests) })
	g.Go(func() error { return rotateLogs(gctx) })
	if d := a.opts.quitAfterDuration(); d > 0 {
		g.Go(func() error { return quitAfter(gctx, d, requests) })
	}
	if a.opts.smokeTest {
		g.Go(func() error { return smokeRequests(gctx, requests) })
	}

	return g.Wait()
}

func (a *app) newChecker(db *store.Store) *updates.Checker {
	interval := common.UpdateCheckInterval
	if a.opts.debugUpdateCheck {
		interval = common.DebugUpdateCheckInterval
	}

	var (
		fetcher  updates.Fetcher       = &updates.HTTPFetcher{URL: updates.DefaultReleaseURL}
		notified updates.NotifiedStore = db
	)
	if a.opts.testUpdateNotification {
		fetcher = fakeRelease{}
		notified = forgetful{}
	}

	checker, err := updates.NewChecker(a.info.Version, fetcher, notified, interval)
	if err != nil {
		common.LogWarn("Update checks disabled: %v", err)
		return nil
	}
	return checker
}

// fakeRelease always has a newer version out.
type fakeRelease struct{}

func (fakeRelease) Latest(context.Context) (updates.Release, error) {
	return updates.Release{
		Version:     semver.Version{Major: 9999},
		DownloadURL: "https://www.vpn-client.dev/download",
	}, nil
}

// forgetful never remembers telling the user, so every check notifies.
type forgetful struct{}

func (forgetful) LastNotifiedVersion(context.Context) (string, bool, error) { return "", false, nil }
func (forgetful) SetLastNotifiedVersion(context.Context, string) error      { return nil }

func sendRequest(ctx context.Context, requests chan<- controller.Request, req controller.Request) bool {
	select {
	case requests <- req:
		return true
	case <-ctx.Done():
		return false
	}
}

func quitRequest() controller.Request {
	return controller.TrayEvent{Event: tray.EventQuit{}}
}

// forwardSignals turns SIGINT and SIGTERM into a graceful quit.
func forwardSignals(ctx context.Context, requests chan<- controller.Request) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		select {
		case sig := <-sigs:
			common.LogInfo("Got %v, quitting", sig)
			if !sendRequest(ctx, requests, quitRequest()) {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func quitAfter(ctx context.Context, d time.Duration, requests chan<- controller.Request) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		common.LogInfo("Quitting after %v", d)
		sendRequest(ctx, requests, quitRequest())
	case <-ctx.Done():
	}
	return nil
}

func rotateLogs(ctx context.Context) error {
	ticker := time.NewTicker(logRotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			common.GetLogger().CheckRotation()
		case <-ctx.Done():
			return nil
		}
	}
}
