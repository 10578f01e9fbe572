package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersAreNoopsBeforeCreate(t *testing.T) {
	mu.Lock()
	prev := current
	current = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		current = prev
		mu.Unlock()
	})

	assert.NotPanics(t, func() {
		ObserveDispatch("email", "sent", 0.1)
		AddSMSSegments(2)
		ObserveCycle(1)
		ScheduleClaimed()
		ScheduleClaimLost()
		ScheduleFailed()
		SchedulesRecovered(3)
	})
}

func TestCreateAndRecord(t *testing.T) {
	require.NoError(t, Create("host-1", "test", "church"))
	// a second Create uses a fresh registry
	require.NoError(t, Create("host-1", "test", "church"))
	m := get()

	ObserveDispatch("sms", "sent", 0.2)
	ObserveDispatch("sms", "sent", 0.3)
	ObserveDispatch("email", "failed", 0.1)
	AddSMSSegments(3)
	ScheduleClaimed()
	ScheduleClaimed()
	ScheduleClaimLost()
	ScheduleFailed()
	SchedulesRecovered(0)
	SchedulesRecovered(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("sms", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("email", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.smsSegments))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.schedulesClaimed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulesClaimLost))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scheduleErrors))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.schedulesRecovered))

	n, err := testutil.GatherAndCount(m.registry, "church_delivery_dispatch_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
