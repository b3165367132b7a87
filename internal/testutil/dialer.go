package testutil

import (
	"context"
	"net"
	"sync/atomic"
)

// HangingDialer never connects. DialContext blocks until ctx is done, the
// way a dial to a host that drops SYN packets does.
type HangingDialer struct {
	dials atomic.Int32
}

// DialContext blocks until ctx is done and returns its error.
func (d *HangingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.dials.Add(1)
	<-ctx.Done()
	return nil, &net.OpError{Op: "dial", Net: network, Err: ctx.Err()}
}

// Dials returns how many dials were attempted.
func (d *HangingDialer) Dials() int {
	return int(d.dials.Load())
}
