package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeTerminal_DefaultsAcceptEverything(t *testing.T) {
	term := NewFakeTerminal()
	ctx := context.Background()

	ok, err := term.Reachable(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	resp, err := term.Send(ctx, "<A/>")
	require.NoError(t, err)
	assert.Equal(t, DefaultResponse, resp)
	assert.Equal(t, []string{"<A/>"}, term.Sent())
	assert.Equal(t, 1, term.Probes())
}

func TestFakeTerminal_FailNextIsConsumedInOrder(t *testing.T) {
	term := NewFakeTerminal()
	ctx := context.Background()
	errA := errors.New("a")
	errB := errors.New("b")
	term.FailNext(errA, errB)

	_, err := term.Send(ctx, "1")
	assert.ErrorIs(t, err, errA)
	_, err = term.Send(ctx, "2")
	assert.ErrorIs(t, err, errB)
	_, err = term.Send(ctx, "3")
	assert.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, term.Sent())
}

func TestFakeTerminal_FailOnPayload(t *testing.T) {
	term := NewFakeTerminal()
	ctx := context.Background()
	boom := errors.New("boom")
	term.FailOn("bad", boom)

	_, err := term.Send(ctx, "bad")
	assert.ErrorIs(t, err, boom)
	_, err = term.Send(ctx, "good")
	assert.NoError(t, err)

	term.FailOn("bad", nil)
	_, err = term.Send(ctx, "bad")
	assert.NoError(t, err)
}

func TestFakeTerminal_ProbeError(t *testing.T) {
	term := NewFakeTerminal()
	cfg := errors.New("bad endpoint")
	term.SetProbeError(cfg)

	ok, err := term.Reachable(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, cfg)
}

func TestManualTicker_TickNeedsReceiver(t *testing.T) {
	ticker := NewManualTicker()

	got := make(chan struct{})
	go func() {
		<-ticker.C()
		close(got)
	}()

	require.True(t, ticker.Tick())
	<-got
}

func TestManualTicker_StoppedTickReturnsFalse(t *testing.T) {
	ticker := NewManualTicker()
	ticker.Stop()
	ticker.Stop() // idempotent

	assert.True(t, ticker.Stopped())
	assert.False(t, ticker.Tick())
}
