// Package arbiter keeps a single GUI instance running. The first instance
// listens on a local endpoint; later ones hand their deep link or launch
// event to it and exit.
package arbiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/ipc"
)

const (
	typeDeeplink = iota + 1
	typeNewInstance
)

const typeAck = 1

var (
	// ErrAlreadyRunning means another instance took our message. The caller
	// should exit successfully.
	ErrAlreadyRunning = errors.New("another instance is already running")
	// ErrNewInstanceHandshakeFailed means another instance is listening but
	// didn't acknowledge.
	ErrNewInstanceHandshakeFailed = errors.New("running instance did not respond")
	// ErrNotRunning means there was no instance to hand a message to.
	ErrNotRunning = errors.New("no running instance")
)

// Msg is sent from a new instance to the running one.
type Msg interface {
	msgType() int
}

// Deeplink carries a URL the OS launched us with.
type Deeplink struct {
	URL string `json:"url"`
}

// NewInstance means the user launched the app again.
type NewInstance struct{}

func (Deeplink) msgType() int    { return typeDeeplink }
func (NewInstance) msgType() int { return typeNewInstance }

func encode(m Msg) (int, []byte, error) {
	switch m := m.(type) {
	case Deeplink:
		data, err := json.Marshal(m)
		return typeDeeplink, data, err
	case NewInstance:
		return typeNewInstance, nil, nil
	default:
		return 0, nil, fmt.Errorf("unknown arbiter message %T", m)
	}
}

func decode(msgType int, data []byte) (Msg, error) {
	switch msgType {
	case typeDeeplink:
		var d Deeplink
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode Deeplink: %w", err)
		}
		return d, nil
	case typeNewInstance:
		return NewInstance{}, nil
	default:
		return nil, fmt.Errorf("unknown arbiter message type %d", msgType)
	}
}

// Incoming is one message from a new instance. Ack must be called exactly
// once, whatever the outcome of handling Msg. Err is set instead of Msg
// when the frame couldn't be decoded; it must still be acknowledged.
type Incoming struct {
	Msg Msg
	Err error
	Ack func() error
}

// Server accepts hand-offs from new instances.
type Server struct {
	t        ipc.Transport
	incoming chan Incoming
	done     chan struct{}
}

// NewServer serves on t. Incoming closes once t does.
func NewServer(t ipc.Transport) *Server {
	s := &Server{t: t, incoming: make(chan Incoming), done: make(chan struct{})}
	go s.readLoop()
	return s
}

func (s *Server) readLoop() {
	defer close(s.incoming)
	ack := func() error { return s.t.WriteMsg(typeAck, nil) }
	for {
		msgType, data, err := s.t.ReadMsg()
		if err != nil {
			common.LogDebug("Arbiter listener stopped: %v", err)
			return
		}
		msg, err := decode(msgType, data)
		select {
		case s.incoming <- Incoming{Msg: msg, Err: err, Ack: ack}:
		case <-s.done:
			return
		}
	}
}

// Incoming returns the stream of hand-offs.
func (s *Server) Incoming() <-chan Incoming {
	return s.incoming
}

// Close stops listening.
func (s *Server) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.t.Close()
}

// Acquire makes this process the running instance. If another instance is
// already listening on name, msg is handed to it and ErrAlreadyRunning is
// returned.
func Acquire(ctx context.Context, name string, msg Msg) (*Server, error) {
	// Dial first: starting a server would take the endpoint over.
	t, err := ipc.Dial(ctx, name, common.ServiceConnectTimeout)
	if err == nil {
		defer t.Close()
		if err := Handoff(ctx, t, msg, common.InstanceHandoffTimeout); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyRunning
	}
	if !errors.Is(err, ipc.ErrNotFound) {
		return nil, err
	}

	t, err = ipc.Listen(name)
	if err != nil {
		return nil, err
	}
	return NewServer(t), nil
}

// Send hands msg to the running instance, e.g. for open-deep-link.
func Send(ctx context.Context, name string, msg Msg) error {
	t, err := ipc.Dial(ctx, name, common.ServiceConnectTimeout)
	if errors.Is(err, ipc.ErrNotFound) {
		return ErrNotRunning
	}
	if err != nil {
		return err
	}
	defer t.Close()
	return Handoff(ctx, t, msg, common.InstanceHandoffTimeout)
}

// Handoff sends msg over t and waits for the acknowledgement. If none comes
// within timeout, t is closed so the pending read ends.
func Handoff(ctx context.Context, t ipc.Transport, msg Msg, timeout time.Duration) error {
	msgType, data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := t.WriteMsg(msgType, data); err != nil {
		return fmt.Errorf("%w: %v", ErrNewInstanceHandshakeFailed, err)
	}

	type result struct {
		msgType int
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		msgType, _, err := t.ReadMsg()
		ch <- result{msgType, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("%w: %v", ErrNewInstanceHandshakeFailed, r.err)
		}
		if r.msgType != typeAck {
			return fmt.Errorf("%w: unexpected reply type %d", ErrNewInstanceHandshakeFailed, r.msgType)
		}
		return nil
	case <-ctx.Done():
		t.Close()
		return fmt.Errorf("%w: %v", ErrNewInstanceHandshakeFailed, ctx.Err())
	}
}
