// Package ipc carries typed messages between the GUI process and the
// privileged tunnel service, and between GUI instances.
//
// Framing is a message type number plus a JSON payload. Transports only move
// frames; protocol.go gives them meaning.
package ipc

import (
	"errors"
)

var (
	// ErrClosed is returned by a Transport whose peer or local side closed.
	ErrClosed = errors.New("ipc channel closed")
	// ErrNotFound means nothing is listening on the requested endpoint.
	ErrNotFound = errors.New("ipc endpoint not found")
)

// Transport is an ordered, bidirectional frame channel.
type Transport interface {
	// ReadMsg blocks until a frame arrives. It returns ErrClosed once the
	// channel is gone.
	ReadMsg() (msgType int, data []byte, err error)
	// WriteMsg sends one frame. msgType must be positive.
	WriteMsg(msgType int, data []byte) error
	Close() error
}
