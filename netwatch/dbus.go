package netwatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	nmInterface = "org.freedesktop.NetworkManager"

	resolvedName      = "org.freedesktop.resolve1"
	resolvedPath      = dbus.ObjectPath("/org/freedesktop/resolve1")
	resolvedManager   = "org.freedesktop.resolve1.Manager"
	propertiesIface   = "org.freedesktop.DBus.Properties"
	propertiesChanged = "PropertiesChanged"
)

var errSignalsClosed = errors.New("d-bus signal channel closed")

// watchSignals forwards every matching signal on a private system bus
// connection as a change.
func watchSignals(ctx context.Context, check func(*dbus.Conn) error, opts ...dbus.MatchOption) (Notifier, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	if check != nil {
		if err := check(conn); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if err := conn.AddMatchSignal(opts...); err != nil {
		conn.Close()
		return nil, fmt.Errorf("add match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	n := newNotifier(ctx)
	n.cleanup = func() error {
		conn.RemoveSignal(signals)
		return conn.Close()
	}

	go func() {
		for {
			select {
			case _, ok := <-signals:
				if !ok {
					n.fail(errSignalsClosed)
					return
				}
				n.changed()
			case <-n.ctx.Done():
				return
			}
		}
	}()
	return n, nil
}

func newDBusNetworkNotifier(ctx context.Context) (Notifier, error) {
	return watchSignals(ctx,
		func(conn *dbus.Conn) error {
			var state uint32
			obj := conn.Object(nmInterface, "/org/freedesktop/NetworkManager")
			return obj.StoreProperty(nmInterface+".State", &state)
		},
		dbus.WithMatchInterface(nmInterface),
		dbus.WithMatchMember("StateChanged"),
	)
}

func newDBusDNSNotifier(ctx context.Context) (Notifier, error) {
	return watchSignals(ctx,
		func(conn *dbus.Conn) error {
			_, err := resolvedDNS(conn)
			return err
		},
		dbus.WithMatchObjectPath(resolvedPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember(propertiesChanged),
	)
}
