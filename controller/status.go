package controller

import (
	"time"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/ipc"
)

// Status is the connection state. Exactly one variant is current.
type Status interface {
	isStatus()
}

// Disconnected has no session with the tunnel service.
type Disconnected struct{}

// WaitingForPortal sent Connect and waits for ConnectResult.
type WaitingForPortal struct {
	// StartTime is when the most recent Connect was sent.
	StartTime time.Time
	Token     common.Secret
}

// WaitingForTunnel is connected to the portal; the tunnel is coming up.
type WaitingForTunnel struct {
	StartTime time.Time
}

// TunnelReady has the tunnel up. Resources is the latest snapshot.
type TunnelReady struct {
	Resources []ipc.Resource
}

// RetryingConnection failed to reach the portal and keeps the token to try
// again when the network changes.
type RetryingConnection struct {
	Token common.Secret
}

// Quitting waits for the service to confirm the disconnect.
type Quitting struct{}

func (Disconnected) isStatus()       {}
func (WaitingForPortal) isStatus()   {}
func (WaitingForTunnel) isStatus()   {}
func (TunnelReady) isStatus()        {}
func (RetryingConnection) isStatus() {}
func (Quitting) isStatus()           {}

// NeedsNetworkChanges reports whether the tunnel service should hear about
// network and DNS changes in status s.
func NeedsNetworkChanges(s Status) bool {
	switch s.(type) {
	case TunnelReady, WaitingForPortal, WaitingForTunnel:
		return true
	default:
		return false
	}
}

// NeedsResourceUpdates reports whether resource snapshots apply in status s.
func NeedsResourceUpdates(s Status) bool {
	switch s.(type) {
	case TunnelReady, WaitingForTunnel:
		return true
	default:
		return false
	}
}

func internetResource(s Status) (ipc.Resource, bool) {
	ready, ok := s.(TunnelReady)
	if !ok {
		return ipc.Resource{}, false
	}
	for _, r := range ready.Resources {
		if r.IsInternetResource() {
			return r, true
		}
	}
	return ipc.Resource{}, false
}

func statusName(s Status) string {
	switch s.(type) {
	case Disconnected:
		return "Disconnected"
	case WaitingForPortal:
		return "WaitingForPortal"
	case WaitingForTunnel:
		return "WaitingForTunnel"
	case TunnelReady:
		return "TunnelReady"
	case RetryingConnection:
		return "RetryingConnection"
	case Quitting:
		return "Quitting"
	default:
		return "Unknown"
	}
}
