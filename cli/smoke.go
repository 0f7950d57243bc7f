package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/controller"
)

const smokeReplyTimeout = 5 * time.Second

var errNoReply = errors.New("controller didn't answer")

// smokeRequests round-trips the settings and log requests through the
// running controller.
func smokeRequests(ctx context.Context, requests chan<- controller.Request) error {
	settingsCh := make(chan *config.Settings, 1)
	if !sendRequest(ctx, requests, controller.GetSettings{Result: settingsCh}) {
		return nil
	}
	var settings *config.Settings
	select {
	case settings = <-settingsCh:
	case <-time.After(smokeReplyTimeout):
		return fmt.Errorf("get settings: %w", errNoReply)
	case <-ctx.Done():
		return nil
	}

	if err := await(ctx, requests, func(r chan<- error) controller.Request {
		return controller.ApplySettings{Settings: settings, Result: r}
	}); err != nil {
		return fmt.Errorf("apply settings: %w", err)
	}

	path := filepath.Join(os.TempDir(), "vpn-client-smoke-test.zip")
	if err := await(ctx, requests, func(r chan<- error) controller.Request {
		return controller.ExportLogs{Path: path, Stem: "vpn-client-logs", Result: r}
	}); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}
	defer os.Remove(path)

	if err := await(ctx, requests, func(r chan<- error) controller.Request {
		return controller.ClearLogs{Result: r}
	}); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}

	common.LogInfo("Smoke test requests passed")
	return nil
}

// await sends the request made by build and waits for its result.
func await(ctx context.Context, requests chan<- controller.Request, build func(chan<- error) controller.Request) error {
	result := make(chan error, 1)
	if !sendRequest(ctx, requests, build(result)) {
		return nil
	}
	select {
	case err := <-result:
		return err
	case <-time.After(smokeReplyTimeout):
		return errNoReply
	case <-ctx.Done():
		return nil
	}
}
