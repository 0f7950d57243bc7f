package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/yllada/vpn-client/arbiter"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/controller"
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/ui"
)

// UserMessage turns a fatal error chain into what the user should read.
func UserMessage(err error) string {
	var handshake *controller.HandshakeError
	switch {
	case errors.Is(err, ipc.ErrNotFound):
		return fmt.Sprintf("Couldn't find the %s tunnel service. Is it installed and running?", common.AppName)
	case errors.As(err, &handshake):
		return fmt.Sprintf("The %s tunnel service is not responding. Try restarting it.", common.AppName)
	case errors.Is(err, arbiter.ErrNewInstanceHandshakeFailed):
		return fmt.Sprintf("%s is already running but not responding. Close it and try again.", common.AppName)
	case errors.Is(err, common.ErrElevated):
		return fmt.Sprintf("%s must not run as root. Start it as your normal user.", common.AppName)
	default:
		return fmt.Sprintf("%s stopped with an error: %v\n\nLogs are in %s", common.AppName, err, common.GetLogDir())
	}
}

// showFatal logs err and tells the user, on the terminal if there is one
// and as a desktop notification otherwise.
func showFatal(err error) {
	common.LogError("Fatal: %v", err)
	msg := UserMessage(err)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintln(os.Stderr, msg)
		return
	}
	_, nerr := ui.NewNotifier().Show(context.Background(), ui.Notification{
		Title:   common.AppName + " error",
		Message: msg,
		Urgency: ui.UrgencyCritical,
	})
	if nerr != nil {
		fmt.Fprintln(os.Stderr, msg)
	}
}
