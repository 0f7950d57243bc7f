//go:build unix

package controller

import (
	"os"
	"syscall"
)

// crash kills the process the way a fatal signal would, skipping deferred
// cleanup.
func crash() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGABRT)
	select {}
}
