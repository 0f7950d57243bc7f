// Package ui is the Linux desktop side of the client: a system tray icon
// with a menu built from tray.BuildMenu, desktop notifications, and the
// browser and clipboard hooks the controller asks for.
//
// The tray is drawn with fyne.io/systray, which speaks StatusNotifierItem
// over D-Bus and needs no GTK main loop. Menu clicks come back to the
// controller as controller.TrayEvent requests.
//
// # File Organization
//
//   - desktop.go: controller.Integration for a desktop session
//   - headless.go: controller.Integration that only logs, for smoke tests
//   - tray.go: system tray renderer
//   - icons.go: tray icon generation
//   - notifications.go: notify-send wrapper
package ui
