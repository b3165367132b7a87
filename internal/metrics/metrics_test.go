package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_OnceOnly(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NotPanics(t, func() {
		Register(reg)
		Register(reg)
	})

	DeliveryOutcomesTotal.WithLabelValues(OutcomeQueued).Inc()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["tallybridge_delivery_outcomes_total"])
}

func TestCounters_Record(t *testing.T) {
	before := testutil.ToFloat64(TaskAdmissionsTotal.WithLabelValues("rejected"))
	TaskAdmissionsTotal.WithLabelValues("rejected").Inc()
	after := testutil.ToFloat64(TaskAdmissionsTotal.WithLabelValues("rejected"))

	assert.Equal(t, before+1, after)
}
