package testutil

import (
	"context"
	"sync"
)

// DefaultResponse is what FakeTerminal answers when nothing else is scripted.
const DefaultResponse = "<RESPONSE><CREATED>1</CREATED></RESPONSE>"

// FakeTerminal is a scripted accounting terminal implementing both the
// reachability probe and the sender used by the delivery path.
//
// By default it is reachable and accepts every payload. Tests flip
// reachability, script one-shot send failures, or fail specific payloads.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeTerminal struct {
	mu        sync.Mutex
	reachable bool
	probeErr  error
	response  string
	failNext  []error
	failOn    map[string]error
	onSend    func(payload string)
	sent      []string
	probes    int
}

// NewFakeTerminal creates a reachable terminal that accepts everything.
func NewFakeTerminal() *FakeTerminal {
	return &FakeTerminal{
		reachable: true,
		response:  DefaultResponse,
		failOn:    make(map[string]error),
	}
}

// SetReachable sets what Reachable reports.
func (f *FakeTerminal) SetReachable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable = ok
}

// SetProbeError makes Reachable return err. Pass nil to clear.
func (f *FakeTerminal) SetProbeError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeErr = err
}

// SetResponse sets the body returned by successful sends.
func (f *FakeTerminal) SetResponse(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response = body
}

// FailNext makes the next len(errs) sends fail, in order.
func (f *FakeTerminal) FailNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = append(f.failNext, errs...)
}

// FailOn makes every send of exactly payload fail with err. Pass nil to clear.
func (f *FakeTerminal) FailOn(payload string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOn, payload)
		return
	}
	f.failOn[payload] = err
}

// OnSend registers a hook called with each payload before it is answered.
func (f *FakeTerminal) OnSend(hook func(payload string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSend = hook
}

// Reachable implements the probe.
func (f *FakeTerminal) Reachable(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.reachable, nil
}

// Send implements the sender. Every attempt is recorded, failed or not.
func (f *FakeTerminal) Send(ctx context.Context, payload string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, payload)
	hook := f.onSend
	var err error
	if len(f.failNext) > 0 {
		err = f.failNext[0]
		f.failNext = f.failNext[1:]
	} else if e, ok := f.failOn[payload]; ok {
		err = e
	}
	response := f.response
	f.mu.Unlock()

	if hook != nil {
		hook(payload)
	}
	if err != nil {
		return "", err
	}
	return response, nil
}

// Sent returns a copy of every payload passed to Send, in call order.
func (f *FakeTerminal) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

// Probes returns how many times Reachable was called.
func (f *FakeTerminal) Probes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}
