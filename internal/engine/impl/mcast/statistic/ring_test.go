package statistic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeRingFIFOWrap(t *testing.T) {
	r := NewTimeRing(3)
	require.Equal(t, 3, r.Cap())

	for i := 1; i <= 3; i++ {
		require.True(t, r.Push(time.Duration(i)))
	}
	require.True(t, r.Full())
	require.False(t, r.Push(4), "push into a full ring must be refused")

	v, ok := r.PopFront()
	require.True(t, ok)
	require.Equal(t, time.Duration(1), v)

	// The freed slot is reused at the physical start of the buffer.
	require.True(t, r.Push(4))
	for _, want := range []time.Duration{2, 3, 4} {
		front, ok := r.Front()
		require.True(t, ok)
		require.Equal(t, want, front)
		got, _ := r.PopFront()
		require.Equal(t, want, got)
	}

	_, ok = r.PopFront()
	require.False(t, ok)
	require.Equal(t, 0, r.Len())
}

func TestTimeRingClear(t *testing.T) {
	r := NewTimeRing(0)
	require.Equal(t, 1, r.Cap())
	require.True(t, r.Push(7))
	r.Clear()
	require.Equal(t, 0, r.Len())
	_, ok := r.Front()
	require.False(t, ok)
}
