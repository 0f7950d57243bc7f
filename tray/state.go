// Package tray describes what the system tray shows, independent of any
// toolkit: the app state it is built from, the icon, the menu entries and
// the events they emit.
package tray

import (
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/updates"
)

// AppState is everything the menu depends on.
type AppState struct {
	Connlib ConnlibState
	Release *updates.Release
}

// ConnlibState is the connection state as the user sees it.
type ConnlibState interface {
	isConnlibState()
}

type (
	// SignedOut has no session and no sign-in in progress.
	SignedOut struct{}
	// WaitingForBrowser is waiting for the sign-in callback.
	WaitingForBrowser struct{}
	// WaitingForPortal has asked the tunnel service to connect.
	WaitingForPortal struct{}
	// WaitingForTunnel is connected to the portal and raising the tunnel.
	WaitingForTunnel struct{}
	// RetryingConnection lost the portal and waits for the network.
	RetryingConnection struct{}
	// Quitting is shutting down.
	Quitting struct{}
)

// SignedIn has a tunnel up.
type SignedIn struct {
	ActorName               string
	FavoriteResources       []string
	InternetResourceEnabled *bool
	Resources               []ipc.Resource
}

func (SignedOut) isConnlibState()          {}
func (WaitingForBrowser) isConnlibState()  {}
func (WaitingForPortal) isConnlibState()   {}
func (WaitingForTunnel) isConnlibState()   {}
func (RetryingConnection) isConnlibState() {}
func (Quitting) isConnlibState()           {}
func (SignedIn) isConnlibState()           {}

// internetEnabled defaults to off when the user never chose.
func (s SignedIn) internetEnabled() bool {
	return s.InternetResourceEnabled != nil && *s.InternetResourceEnabled
}

func (s SignedIn) isFavorite(id string) bool {
	for _, f := range s.FavoriteResources {
		if f == id {
			return true
		}
	}
	return false
}

// Icon picks the tray icon for s.
func (s AppState) Icon() Icon {
	icon := Icon{UpdateReady: s.Release != nil}
	switch s.Connlib.(type) {
	case SignedOut, nil:
		icon.Base = BaseSignedOut
	case SignedIn:
		icon.Base = BaseSignedIn
	default:
		icon.Base = BaseBusy
	}
	return icon
}

// Tooltip is a short status line for the tray icon.
func (s AppState) Tooltip() string {
	switch c := s.Connlib.(type) {
	case SignedIn:
		return "Signed in as " + c.ActorName
	case WaitingForBrowser:
		return "Waiting for browser sign-in"
	case WaitingForPortal, WaitingForTunnel:
		return "Connecting"
	case RetryingConnection:
		return "No Internet or portal connection"
	case Quitting:
		return "Quitting"
	default:
		return "Signed out"
	}
}
