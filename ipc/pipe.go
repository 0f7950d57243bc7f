package ipc

import (
	"sync"
)

type frame struct {
	msgType int
	data    []byte
}

// pipeEnd is one side of an in-memory Transport pair.
type pipeEnd struct {
	in  <-chan frame
	out chan<- frame

	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected in-memory transports. Closing either end closes
// both. Writes are buffered so a writer never waits for the reader.
func Pipe() (Transport, Transport) {
	ab := make(chan frame, 64)
	ba := make(chan frame, 64)
	done := make(chan struct{})
	once := &sync.Once{}

	a := &pipeEnd{in: ba, out: ab, done: done, once: once}
	b := &pipeEnd{in: ab, out: ba, done: done, once: once}
	return a, b
}

func (p *pipeEnd) ReadMsg() (int, []byte, error) {
	// Drain what was already written before reporting a close.
	select {
	case f := <-p.in:
		return f.msgType, f.data, nil
	default:
	}
	select {
	case f := <-p.in:
		return f.msgType, f.data, nil
	case <-p.done:
		select {
		case f := <-p.in:
			return f.msgType, f.data, nil
		default:
			return 0, nil, ErrClosed
		}
	}
}

func (p *pipeEnd) WriteMsg(msgType int, data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- frame{msgType: msgType, data: append([]byte(nil), data...)}:
		return nil
	case <-p.done:
		return ErrClosed
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
