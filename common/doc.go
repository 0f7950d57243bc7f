// Package common provides shared constants, types, utilities, and interfaces
// used throughout the VPN client.
//
//   - Constants: application identity, file names, IPC endpoint names, timeouts
//   - Errors: sentinel errors checked with errors.Is
//   - Secret: a string wrapper that never prints its value
//   - Logger: leveled logging with file rotation, log filters, export and clearing
//
// # Usage
//
//	common.LogInfo("Connecting to %s", apiURL)
//
//	if errors.Is(err, common.ErrAlreadyConnected) {
//	    // ignore duplicate sign-in
//	}
package common
