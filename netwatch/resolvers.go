package netwatch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/godbus/dbus/v5"
)

// ResolvConfPath is the classic resolver configuration file.
const ResolvConfPath = "/etc/resolv.conf"

var errWatcherClosed = errors.New("resolv.conf watcher closed")

// resolved's stub listener. Reporting it would point the tunnel at itself.
var resolvedStub = netip.MustParseAddr("127.0.0.53")

// SystemResolvers returns the upstream DNS servers of the host. It asks
// systemd-resolved first and falls back to resolv.conf.
func SystemResolvers() ([]netip.Addr, error) {
	if conn, err := dbus.ConnectSystemBus(); err == nil {
		defer conn.Close()
		if addrs, err := resolvedDNS(conn); err == nil && len(addrs) > 0 {
			return addrs, nil
		}
	}

	f, err := os.Open(ResolvConfPath)
	if err != nil {
		return nil, fmt.Errorf("read resolvers: %w", err)
	}
	defer f.Close()
	return ParseResolvConf(f)
}

// resolvedDNS reads the DNS property of the resolve1 manager,
// signature a(iiay): ifindex, address family, raw address.
func resolvedDNS(conn *dbus.Conn) ([]netip.Addr, error) {
	var entries []struct {
		Ifindex int32
		Family  int32
		Address []byte
	}
	obj := conn.Object(resolvedName, resolvedPath)
	if err := obj.StoreProperty(resolvedManager+".DNS", &entries); err != nil {
		return nil, fmt.Errorf("read resolved DNS: %w", err)
	}

	var addrs []netip.Addr
	for _, e := range entries {
		addr, ok := netip.AddrFromSlice(e.Address)
		if !ok {
			continue
		}
		addrs = append(addrs, addr.Unmap())
	}
	return addrs, nil
}

// ParseResolvConf extracts nameserver addresses, skipping resolved's stub.
func ParseResolvConf(r io.Reader) ([]netip.Addr, error) {
	var addrs []netip.Addr
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "nameserver" {
			continue
		}
		addr, err := netip.ParseAddr(fields[1])
		if err != nil {
			continue
		}
		if addr == resolvedStub {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs, scanner.Err()
}

// newResolvConfNotifier watches the directory holding path, since tools
// usually replace resolv.conf rather than write it in place.
func newResolvConfNotifier(ctx context.Context, path string) (Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	n := newNotifier(ctx)
	n.cleanup = w.Close
	name := filepath.Clean(path)

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					n.fail(errWatcherClosed)
					return
				}
				if filepath.Clean(ev.Name) != name {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					n.changed()
				}
			case err, ok := <-w.Errors:
				if !ok {
					n.fail(errWatcherClosed)
					return
				}
				n.fail(err)
				return
			case <-n.ctx.Done():
				return
			}
		}
	}()
	return n, nil
}
