package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDropsOldestWhenFull(t *testing.T) {
	r := New[int](2)

	assert.False(t, r.Send(1))
	assert.False(t, r.Send(2))
	assert.True(t, r.Send(3)) // ring full, drops 1

	var got []int
	for i := 0; i < 2; i++ {
		v, ok := r.Receive()
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3}, got)
}

func TestTrySendFailsWhenFull(t *testing.T) {
	r := New[int](1)
	assert.True(t, r.TrySend(1))
	assert.False(t, r.TrySend(2))
}

func TestMetricsTrackWrittenOverwrittenProcessed(t *testing.T) {
	r := New[int](1)
	r.Send(1)
	r.Send(2) // overwrites 1
	_, _ = r.Receive()

	m := r.GetMetrics()
	assert.Equal(t, int64(2), m.Written)
	assert.Equal(t, int64(1), m.Overwritten)
	assert.Equal(t, int64(1), m.Processed)
}

func TestTryReceiveOnEmptyRing(t *testing.T) {
	r := New[int](1)
	_, ok := r.TryReceive()
	assert.False(t, ok)
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
