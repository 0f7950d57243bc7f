package ui

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/yllada/vpn-client/common"
)

// Urgency maps to the notify-send urgency levels.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

const notifyIcon = "network-vpn"

// Notification is one desktop notification.
type Notification struct {
	Title   string
	Message string
	Urgency Urgency
	// Action, when set, adds a default action and makes the call wait for
	// the user to click or dismiss.
	Action string
}

// Notifier shows notifications with notify-send from libnotify.
type Notifier struct {
	// command is swapped in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewNotifier returns a Notifier that runs notify-send.
func NewNotifier() *Notifier {
	return &Notifier{command: exec.CommandContext}
}

func (n Notification) args() []string {
	urgency := n.Urgency
	if urgency == "" {
		urgency = UrgencyNormal
	}
	args := []string{
		"--app-name=" + common.AppName,
		"--icon=" + notifyIcon,
		"--urgency=" + string(urgency),
	}
	if n.Action != "" {
		args = append(args, "--action=default="+n.Action, "--wait")
	}
	return append(args, n.Title, n.Message)
}

// Show displays n and returns once notify-send exits. For notifications
// with an Action, clicked reports whether the user chose it.
func (nf *Notifier) Show(ctx context.Context, n Notification) (clicked bool, err error) {
	var out bytes.Buffer
	cmd := nf.command(ctx, "notify-send", n.args()...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return false, common.WrapError(err, "notify-send")
	}
	return n.Action != "" && strings.TrimSpace(out.String()) == "default", nil
}
