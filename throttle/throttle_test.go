package throttle

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newThrottler(interval time.Duration) (*Throttler, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	return New(interval, WithClock(clock.Now)), clock
}

func TestThrottler_FirstPushEmits(t *testing.T) {
	th, _ := newThrottler(50 * time.Millisecond)

	out, ok := th.Push([]byte{1, 2})
	require.True(t, ok)
	require.Equal(t, []byte{1, 2}, out)
	require.Zero(t, th.Pending())
}

func TestThrottler_CoalescesWithinInterval(t *testing.T) {
	th, clock := newThrottler(50 * time.Millisecond)
	_, ok := th.Push([]byte{0})
	require.True(t, ok)

	var want []byte
	for i := 1; i <= 10; i++ {
		clock.Advance(4 * time.Millisecond)
		chunk := bytes.Repeat([]byte{byte(i)}, i)
		want = append(want, chunk...)
		out, ok := th.Push(chunk)
		require.False(t, ok)
		require.Nil(t, out)
	}
	require.Equal(t, len(want), th.Pending())

	out, ok := th.Flush()
	require.True(t, ok)
	require.Equal(t, want, out)

	_, ok = th.Flush()
	require.False(t, ok)
}

func TestThrottler_EmitsWholeBufferAfterInterval(t *testing.T) {
	th, clock := newThrottler(50 * time.Millisecond)
	th.Push([]byte("a"))

	clock.Advance(10 * time.Millisecond)
	_, ok := th.Push([]byte("b"))
	require.False(t, ok)

	clock.Advance(40 * time.Millisecond)
	out, ok := th.Push([]byte("c"))
	require.True(t, ok)
	require.Equal(t, "bc", string(out))
}

func TestThrottler_Tick(t *testing.T) {
	th, clock := newThrottler(50 * time.Millisecond)
	th.Push([]byte("a"))

	_, ok := th.Tick()
	require.False(t, ok, "empty buffer never ticks out")

	th.Push([]byte("b"))
	_, ok = th.Tick()
	require.False(t, ok)

	clock.Advance(50 * time.Millisecond)
	out, ok := th.Tick()
	require.True(t, ok)
	require.Equal(t, "b", string(out))
}

func TestThrottler_ClearAndSetInterval(t *testing.T) {
	th, clock := newThrottler(0)
	require.Equal(t, DefaultInterval, th.Interval())

	th.Push([]byte("x"))
	th.Push([]byte("y"))
	th.Clear()
	require.Zero(t, th.Pending())

	th.SetInterval(-1)
	require.Equal(t, DefaultInterval, th.Interval())
	th.SetInterval(time.Second)
	clock.Advance(100 * time.Millisecond)
	_, ok := th.Push([]byte("z"))
	require.False(t, ok)
}
