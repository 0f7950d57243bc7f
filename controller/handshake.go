package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/ipc"
)

// HandshakeError means the tunnel service was reachable but never said
// Hello. Users see it as "service not responding".
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string {
	return "tunnel service handshake failed: " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ReceiveHello waits for the first message on msgs and checks it is Hello.
func ReceiveHello(msgs <-chan ipc.Received, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r, ok := <-msgs:
		switch {
		case !ok:
			return &HandshakeError{Err: ipc.ErrClosed}
		case r.Err != nil:
			return &HandshakeError{Err: r.Err}
		}
		if _, ok := r.Msg.(ipc.Hello); !ok {
			return &HandshakeError{Err: fmt.Errorf("expected Hello, got %T", r.Msg)}
		}
		return nil
	case <-timer.C:
		return &HandshakeError{Err: common.ErrTimeout}
	}
}

// ConnectService dials the tunnel service and completes the handshake.
// ipc.ErrNotFound means nothing is listening.
func ConnectService(ctx context.Context, name string) (*ipc.Client, error) {
	client, err := ipc.DialClient(ctx, name, common.ServiceConnectTimeout)
	if err != nil {
		if errors.Is(err, ipc.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("connect to tunnel service: %w", err)
	}
	if err := ReceiveHello(client.Messages(), common.HelloTimeout); err != nil {
		_ = client.Close()
		return nil, err
	}
	common.LogDebug("Tunnel service said Hello")
	return client, nil
}
