package controller

import (
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/tray"
)

// Request is a command for the controller from the UI or the process entry.
//
// Result channels must be buffered; the controller never blocks on them and
// drops a reply nobody has room for.
type Request interface {
	isRequest()
}

// ApplySettings saves new settings and applies the log filter.
type ApplySettings struct {
	Settings *config.Settings
	Result   chan<- error
}

// ClearLogs clears GUI logs now and tunnel service logs asynchronously.
// Result receives the service's answer.
type ClearLogs struct {
	Result chan<- error
}

// ExportLogs zips the logs to Path under a top-level directory Stem.
type ExportLogs struct {
	Path   string
	Stem   string
	Result chan<- error
}

// Failure selects a deliberate fault.
type Failure int

const (
	FailureCrash Failure = iota
	FailureError
	FailurePanic
)

// Fail injects a fault to exercise error reporting.
type Fail struct {
	Failure Failure
}

// GetSettings returns a copy of the current settings.
type GetSettings struct {
	Result chan<- *config.Settings
}

// SignIn starts a browser sign-in.
type SignIn struct{}

// SignOut ends the session.
type SignOut struct{}

// TrayEvent forwards a menu click.
type TrayEvent struct {
	Event tray.Event
}

// UpdateNotificationClicked opens the download page.
type UpdateNotificationClicked struct {
	URL string
}

func (ApplySettings) isRequest()             {}
func (ClearLogs) isRequest()                 {}
func (ExportLogs) isRequest()                {}
func (Fail) isRequest()                      {}
func (GetSettings) isRequest()               {}
func (SignIn) isRequest()                    {}
func (SignOut) isRequest()                   {}
func (TrayEvent) isRequest()                 {}
func (UpdateNotificationClicked) isRequest() {}

func reply[T any](ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
