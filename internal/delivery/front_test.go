package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tallybridge/internal/metrics"
	"github.com/roach88/tallybridge/internal/store"
	"github.com/roach88/tallybridge/internal/terminal"
	"github.com/roach88/tallybridge/internal/testutil"
)

func TestDeliverOrQueue_DeliveredIsNotQueued(t *testing.T) {
	q := newTestQueue(t)
	term := testutil.NewFakeTerminal()
	term.SetResponse("<RESPONSE>OK</RESPONSE>")
	f := newTestFront(q, term)

	before := promtest.ToFloat64(metrics.DeliveryOutcomesTotal.WithLabelValues(metrics.OutcomeDelivered))

	out, err := f.DeliverOrQueue(context.Background(), "<ENVELOPE/>", "xml")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, out.Status)
	assert.Equal(t, "<RESPONSE>OK</RESPONSE>", out.Response)
	assert.Zero(t, out.QueueID)

	assert.Equal(t, []string{"<ENVELOPE/>"}, term.Sent())
	assert.Empty(t, pendingPayloads(t, q))

	after := promtest.ToFloat64(metrics.DeliveryOutcomesTotal.WithLabelValues(metrics.OutcomeDelivered))
	assert.Equal(t, before+1, after)
}

func TestDeliverOrQueue_UnreachableQueuesWithoutSending(t *testing.T) {
	q := newTestQueue(t)
	term := testutil.NewFakeTerminal()
	term.SetReachable(false)
	f := newTestFront(q, term)

	out, err := f.DeliverOrQueue(context.Background(), "<ENVELOPE/>", "xml")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, out.Status)
	assert.NotZero(t, out.QueueID)
	assert.Empty(t, out.Response)

	assert.Empty(t, term.Sent())

	item, err := q.QueueItem(context.Background(), out.QueueID)
	require.NoError(t, err)
	assert.Equal(t, "<ENVELOPE/>", item.Payload)
	assert.Equal(t, "xml", item.Kind)
}

func TestDeliverOrQueue_RecoverableSendFailureQueues(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unreachable", &terminal.UnreachableError{Endpoint: "http://tally", Err: errors.New("connection reset")}},
		{"transport", &terminal.TransportError{Endpoint: "http://tally", StatusCode: 500, Reason: "unexpected status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue(t)
			term := testutil.NewFakeTerminal()
			term.FailNext(tt.err)
			f := newTestFront(q, term)

			out, err := f.DeliverOrQueue(context.Background(), "<A/>", "xml")
			require.NoError(t, err)
			assert.Equal(t, OutcomeQueued, out.Status)
			assert.Len(t, term.Sent(), 1, "exactly one attempt, no internal retry")
			assert.Equal(t, []string{"<A/>"}, pendingPayloads(t, q))
		})
	}
}

func TestDeliverOrQueue_ProbeConfigErrorReturned(t *testing.T) {
	q := newTestQueue(t)
	term := testutil.NewFakeTerminal()
	term.SetProbeError(&terminal.ConfigError{Endpoint: "::bad", Err: errors.New("missing host")})
	f := newTestFront(q, term)

	_, err := f.DeliverOrQueue(context.Background(), "<A/>", "xml")
	require.Error(t, err)
	assert.True(t, terminal.IsConfigError(err))
	assert.Empty(t, pendingPayloads(t, q))
}

func TestDeliverOrQueue_StorageFaultReturned(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Close())
	term := testutil.NewFakeTerminal()
	term.SetReachable(false)
	f := newTestFront(q, term)

	_, err := f.DeliverOrQueue(context.Background(), "<A/>", "xml")
	require.Error(t, err)
	assert.True(t, store.IsFault(err))
}

func TestDeliverOrQueue_CancelledCallerStillQueues(t *testing.T) {
	q := newTestQueue(t)
	term := testutil.NewFakeTerminal()
	term.SetReachable(false)
	f := newTestFront(q, term)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.DeliverOrQueue(ctx, "<A/>", "xml")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, out.Status)
	assert.Equal(t, []string{"<A/>"}, pendingPayloads(t, q))
}

func TestDeliverOrQueue_SilentTerminalQueuesWithinProbeTimeout(t *testing.T) {
	const timeout = 200 * time.Millisecond
	q := newTestQueue(t)
	dialer := &testutil.HangingDialer{}
	term := terminal.New("http://10.255.255.1:9000",
		terminal.WithProbeTimeout(timeout), terminal.WithDialer(dialer))
	f := NewFront(q, term, term, WithFrontLogger(quietLogger()))

	start := time.Now()
	out, err := f.DeliverOrQueue(context.Background(), "<SILENT/>", "xml")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, out.Status)
	assert.Less(t, elapsed, timeout+time.Second)
	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, []string{"<SILENT/>"}, pendingPayloads(t, q))
}
