package netwatch

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"
)

// newPollingNotifier calls fingerprint every interval and reports a change
// whenever the result differs from the previous one.
func newPollingNotifier(ctx context.Context, interval time.Duration, fingerprint func() (string, error)) Notifier {
	n := newNotifier(ctx)

	go func() {
		last, _ := fingerprint()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-n.ctx.Done():
				return
			}
			current, err := fingerprint()
			if err != nil {
				n.fail(err)
				return
			}
			if current != last {
				last = current
				n.changed()
			}
		}
	}()
	return n
}

// interfaceFingerprint summarizes the up interfaces and their addresses.
func interfaceFingerprint() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var parts []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			parts = append(parts, iface.Name+"="+a.String())
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ","), nil
}
