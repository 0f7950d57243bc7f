package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Received is one inbound message, or the error that ended the stream.
type Received struct {
	Msg ServerMsg
	Err error
}

// Client is the GUI's end of the tunnel service channel.
type Client struct {
	t Transport

	sendMu sync.Mutex
	msgs   chan Received
	done   chan struct{}

	closeOnce sync.Once
}

// NewClient starts reading from t. The Messages channel yields every decoded
// message, then at most one Received with Err set, then closes.
func NewClient(t Transport) *Client {
	c := &Client{t: t, msgs: make(chan Received), done: make(chan struct{})}
	go c.readLoop()
	return c
}

// DialClient dials the tunnel service endpoint.
func DialClient(ctx context.Context, name string, timeout time.Duration) (*Client, error) {
	t, err := Dial(ctx, name, timeout)
	if err != nil {
		return nil, err
	}
	return NewClient(t), nil
}

func (c *Client) readLoop() {
	defer close(c.msgs)
	for {
		msgType, data, err := c.t.ReadMsg()
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				c.deliver(Received{Err: err})
			}
			return
		}
		msg, err := DecodeServerMsg(msgType, data)
		if err != nil {
			c.deliver(Received{Err: err})
			return
		}
		if !c.deliver(Received{Msg: msg}) {
			return
		}
	}
}

func (c *Client) deliver(r Received) bool {
	select {
	case c.msgs <- r:
		return true
	case <-c.done:
		return false
	}
}

// Messages returns the inbound stream.
func (c *Client) Messages() <-chan Received {
	return c.msgs
}

// Send writes one command. Concurrent calls are serialized.
func (c *Client) Send(m ClientMsg) error {
	msgType, data, err := EncodeClientMsg(m)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.t.WriteMsg(msgType, data); err != nil {
		return fmt.Errorf("send %T: %w", m, err)
	}
	return nil
}

// Close closes the transport. The Messages channel closes shortly after.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.t.Close()
	})
	return err
}

// ServerConn is the tunnel service's end of the channel.
type ServerConn struct {
	t      Transport
	sendMu sync.Mutex
}

// NewServerConn wraps t.
func NewServerConn(t Transport) *ServerConn {
	return &ServerConn{t: t}
}

// Send writes one event.
func (s *ServerConn) Send(m ServerMsg) error {
	msgType, data, err := EncodeServerMsg(m)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.t.WriteMsg(msgType, data)
}

// Recv blocks for the next command.
func (s *ServerConn) Recv() (ClientMsg, error) {
	msgType, data, err := s.t.ReadMsg()
	if err != nil {
		return nil, err
	}
	return DecodeClientMsg(msgType, data)
}

// Close closes the transport.
func (s *ServerConn) Close() error {
	return s.t.Close()
}
