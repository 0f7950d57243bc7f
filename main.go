// Package main is the entry point of the VPN Client tray application.
//
// The client is unprivileged. It signs in through the browser and asks the
// tunnel service, which runs as root, to bring the tunnel up.
//
// Usage:
//
//	vpn-client [command]
//
// Environment:
//
//	The tunnel service must be running and listening on its local socket.
package main

import (
	"os"

	"github.com/yllada/vpn-client/cli"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{
		Version:   appVersion,
		BuildTime: buildTime,
		Commit:    commitSHA,
	}))
}
