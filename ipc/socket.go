package ipc

import (
	"context"
	"fmt"
	"sync"
	"time"

	ipc "github.com/james-barrow/golang-ipc"

	"github.com/yllada/vpn-client/common"
)

// endpoint is the part of the golang-ipc Client and Server we rely on.
type endpoint interface {
	Read() (*ipc.Message, error)
	Write(msgType int, message []byte) error
	StatusCode() ipc.Status
}

// socket adapts a golang-ipc endpoint to Transport.
//
// The library reports progress on the same unbuffered channel as data, and
// its connect goroutine blocks until someone reads. pump is that reader: it
// starts with the endpoint and keeps draining until the library gives up,
// even after the transport is closed. Negative message types are status
// notifications and never reach callers.
type socket struct {
	ep    endpoint
	close func()
	// fatal reports whether a status ends this transport.
	fatal func(ipc.Status) bool

	frames chan frame
	// ready is closed once the endpoint reports Connected.
	ready chan struct{}
	// dead is closed when the endpoint ends; err says why.
	dead chan struct{}
	err  error
	// done is closed by Close.
	done chan struct{}

	closeOnce sync.Once
}

func newSocket(ep endpoint, closeFn func(), fatal func(ipc.Status) bool) *socket {
	s := &socket{
		ep:     ep,
		close:  closeFn,
		fatal:  fatal,
		frames: make(chan frame),
		ready:  make(chan struct{}),
		dead:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *socket) pump() {
	alive := true
	connected := false
	end := func(err error) {
		if alive {
			s.err = err
			close(s.dead)
			alive = false
		}
	}

	for {
		m, err := s.ep.Read()
		if err != nil {
			end(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}
		if m.MsgType > 0 {
			if !alive {
				continue
			}
			select {
			case s.frames <- frame{msgType: m.MsgType, data: m.Data}:
			case <-s.done:
			}
			continue
		}

		status := s.ep.StatusCode()
		if !alive || s.isClosed() {
			// The library reconnects on its own; don't let it keep a
			// connection nobody reads.
			if status == ipc.Connected {
				s.close()
			}
			continue
		}
		if status == ipc.Connected && !connected {
			connected = true
			close(s.ready)
		}
		if s.fatal(status) {
			end(fmt.Errorf("%w: %s", ErrClosed, m.Status))
			continue
		}
		common.LogDebug("IPC status: %s", m.Status)
	}
}

func (s *socket) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *socket) ReadMsg() (int, []byte, error) {
	select {
	case f := <-s.frames:
		return f.msgType, f.data, nil
	case <-s.dead:
		return 0, nil, s.err
	case <-s.done:
		return 0, nil, ErrClosed
	}
}

func (s *socket) WriteMsg(msgType int, data []byte) error {
	if msgType <= 0 {
		return fmt.Errorf("invalid message type %d", msgType)
	}
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.ep.Write(msgType, data); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

func (s *socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.close()
	})
	return nil
}

// clientGone treats any loss of the server as the end of the channel; the
// library would otherwise keep reconnecting in the background.
func clientGone(st ipc.Status) bool {
	switch st {
	case ipc.Connected, ipc.Connecting:
		return false
	default:
		return true
	}
}

// serverGone only ends on a closed listener. A client hanging up puts the
// server back into listening for the next one.
func serverGone(st ipc.Status) bool {
	return st == ipc.Closed || st == ipc.Error
}

// Dial connects to the endpoint name. It waits up to timeout for the server
// to accept and returns ErrNotFound if it doesn't.
func Dial(ctx context.Context, name string, timeout time.Duration) (Transport, error) {
	c, err := ipc.StartClient(name, &ipc.ClientConfig{
		Timeout:    timeout.Seconds(),
		RetryTimer: 1,
		Encryption: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	s := newSocket(c, c.Close, clientGone)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-s.ready:
		return s, nil
	case <-s.dead:
		s.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, name, s.err)
	case <-ctx.Done():
		s.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
}

// Listen starts a server on the endpoint name. The returned transport talks
// to whichever client is currently connected.
func Listen(name string) (Transport, error) {
	srv, err := ipc.StartServer(name, nil)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", name, err)
	}
	return newSocket(srv, srv.Close, serverGone), nil
}
