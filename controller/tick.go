package controller

import (
	"github.com/yllada/vpn-client/arbiter"
	"github.com/yllada/vpn-client/ipc"
	"github.com/yllada/vpn-client/netwatch"
	"github.com/yllada/vpn-client/updates"
)

// A tick is one input to the event loop. The ok fields are false when the
// source channel was closed.
type (
	dnsTick struct {
		ev netwatch.Event
		ok bool
	}
	networkTick struct {
		ev netwatch.Event
		ok bool
	}
	serviceTick struct {
		msg ipc.Received
		ok  bool
	}
	requestTick struct {
		req Request
		ok  bool
	}
	updateTick struct {
		n  *updates.Notification
		ok bool
	}
	arbiterTick struct {
		in arbiter.Incoming
		ok bool
	}
)

// nextTick waits for the next input. Sources are strictly prioritized:
// DNS, network, tunnel service, requests, updates, then new instances. A
// lower source is only taken when no higher one has a value ready, so a
// busy high-priority source can starve the ones below it.
//
// A nil channel is a disabled source.
func (c *Controller) nextTick() interface{} {
	select {
	case ev, ok := <-c.dns:
		return dnsTick{ev, ok}
	default:
	}
	select {
	case ev, ok := <-c.network:
		return networkTick{ev, ok}
	default:
	}
	select {
	case msg, ok := <-c.serviceMsgs:
		return serviceTick{msg, ok}
	default:
	}
	select {
	case req, ok := <-c.requests:
		return requestTick{req, ok}
	default:
	}
	select {
	case n, ok := <-c.updates:
		return updateTick{n, ok}
	default:
	}
	select {
	case in, ok := <-c.arbiter:
		return arbiterTick{in, ok}
	default:
	}

	// Nothing ready: wait for whichever source fires first.
	select {
	case ev, ok := <-c.dns:
		return dnsTick{ev, ok}
	case ev, ok := <-c.network:
		return networkTick{ev, ok}
	case msg, ok := <-c.serviceMsgs:
		return serviceTick{msg, ok}
	case req, ok := <-c.requests:
		return requestTick{req, ok}
	case n, ok := <-c.updates:
		return updateTick{n, ok}
	case in, ok := <-c.arbiter:
		return arbiterTick{in, ok}
	}
}
