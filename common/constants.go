// Package common provides shared constants, types, and utilities
// used across the VPN client.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.vpnclient.gui"
	// AppName is the display name of the application.
	AppName = "VPN Client"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpn-client"
	// DeepLinkScheme is the URL scheme registered for sign-in callbacks.
	DeepLinkScheme = "vpn-client"
)

// File names used by the application.
const (
	SettingsFileName    = "advanced_settings.yaml"
	SessionFileName     = "session.yaml"
	StateFileName       = "state.db"
	CredentialsFileName = ".credentials"
	LogFileName         = "vpn-client.log"
)

// Local IPC endpoint names.
const (
	// TunnelSocketName is the endpoint of the privileged tunnel service.
	TunnelSocketName = "vpn-client-tunnel"
	// GUISocketName is the endpoint used to arbitrate between GUI instances.
	GUISocketName = "vpn-client-gui"
)

// Default timeouts and intervals.
const (
	// HelloTimeout is how long the tunnel service has to greet us after connecting.
	HelloTimeout = 5 * time.Second
	// ServiceConnectTimeout is how long to wait for the tunnel service endpoint.
	ServiceConnectTimeout = 2 * time.Second
	// InstanceHandoffTimeout bounds a hand-off to an already-running instance.
	InstanceHandoffTimeout = 5 * time.Second
	// UpdateCheckInterval is how often the update checker polls for releases.
	UpdateCheckInterval = 12 * time.Hour
	// DebugUpdateCheckInterval is used with --debug-update-check.
	DebugUpdateCheckInterval = 30 * time.Second
	// NetworkPollInterval is used when no OS change notifications are available.
	NetworkPollInterval = 5 * time.Second
	// SmokeTestDuration is how long a smoke test runs before quitting.
	SmokeTestDuration = 10 * time.Second
)

// Default endpoints.
const (
	DefaultAuthBaseURL = "https://app.vpn-client.dev"
	DefaultAPIURL      = "wss://api.vpn-client.dev"
	DefaultLogFilter   = "info"
)

// UI constants.
const (
	// TrayIconSize is the size of the system tray icon.
	TrayIconSize = 22
)
