// Package netwatch notices when the host's network connectivity or DNS
// configuration changes.
//
// Notifiers coalesce: while one change is waiting to be received, further
// changes are dropped, so a slow consumer sees at most one pending event.
package netwatch

import (
	"context"
	"sync"

	"github.com/yllada/vpn-client/common"
)

// Event is one change notification. Err is set when the notifier broke;
// no further events follow it.
type Event struct {
	Err error
}

// Notifier delivers change events until closed.
type Notifier interface {
	Events() <-chan Event
	Close() error
}

// notifier is the shared event plumbing. Sources call changed or fail.
type notifier struct {
	events chan Event
	cancel context.CancelFunc
	ctx    context.Context

	once    sync.Once
	cleanup func() error
}

func newNotifier(parent context.Context) *notifier {
	ctx, cancel := context.WithCancel(parent)
	return &notifier{events: make(chan Event, 1), ctx: ctx, cancel: cancel}
}

func (n *notifier) Events() <-chan Event {
	return n.events
}

func (n *notifier) changed() {
	select {
	case n.events <- Event{}:
	default:
	}
}

// fail reports err. It waits for room so the error is not coalesced away.
func (n *notifier) fail(err error) {
	select {
	case n.events <- Event{Err: err}:
	case <-n.ctx.Done():
	}
}

func (n *notifier) Close() error {
	var err error
	n.once.Do(func() {
		n.cancel()
		if n.cleanup != nil {
			err = n.cleanup()
		}
	})
	return err
}

// NewNetworkNotifier watches NetworkManager over D-Bus, or polls the
// interface list if NetworkManager isn't reachable.
func NewNetworkNotifier(ctx context.Context) (Notifier, error) {
	n, err := newDBusNetworkNotifier(ctx)
	if err == nil {
		return n, nil
	}
	common.LogInfo("NetworkManager unavailable (%v), polling interfaces", err)
	return newPollingNotifier(ctx, common.NetworkPollInterval, interfaceFingerprint), nil
}

// NewDNSNotifier watches systemd-resolved over D-Bus, or /etc/resolv.conf
// if resolved isn't running.
func NewDNSNotifier(ctx context.Context) (Notifier, error) {
	n, err := newDBusDNSNotifier(ctx)
	if err == nil {
		return n, nil
	}
	common.LogInfo("systemd-resolved unavailable (%v), watching %s", err, ResolvConfPath)
	return newResolvConfNotifier(ctx, ResolvConfPath)
}
