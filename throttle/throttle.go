// Package throttle coalesces a high-frequency stream of small byte chunks into
// fewer, larger batches so downstream consumers run at a bounded rate.
//
// Known limitation: the buffer has no upper bound. On a busy link it grows
// until the next emission.
//
// A Throttler is not safe for concurrent use; it is meant to be driven by a
// single reader goroutine.
package throttle

import "time"

// DefaultInterval is the minimum time between two emitted batches.
const DefaultInterval = 50 * time.Millisecond

// Throttler buffers pushed bytes and releases them at most once per interval.
type Throttler struct {
	buf      []byte
	lastEmit time.Time
	interval time.Duration
	now      func() time.Time
}

// Option configures a Throttler.
type Option func(*Throttler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Throttler) { t.now = now }
}

// New returns a Throttler whose first Push emits immediately.
// A non-positive interval means DefaultInterval.
func New(interval time.Duration, opts ...Option) *Throttler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Throttler{interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.lastEmit = t.now().Add(-interval)
	return t
}

// Push appends chunk to the buffer. If at least one interval has elapsed since
// the last emission it returns the whole buffer and true; otherwise the bytes
// stay buffered and it returns nil, false.
func (t *Throttler) Push(chunk []byte) ([]byte, bool) {
	t.buf = append(t.buf, chunk...)
	if t.now().Sub(t.lastEmit) < t.interval {
		return nil, false
	}
	return t.emit(), true
}

// Tick emits the buffer when it is non-empty and the interval has elapsed,
// without adding data. Readers call it on idle polls.
func (t *Throttler) Tick() ([]byte, bool) {
	if len(t.buf) == 0 || t.now().Sub(t.lastEmit) < t.interval {
		return nil, false
	}
	return t.emit(), true
}

// Flush emits any buffered bytes regardless of the interval.
func (t *Throttler) Flush() ([]byte, bool) {
	if len(t.buf) == 0 {
		return nil, false
	}
	return t.emit(), true
}

// Clear drops buffered bytes without emitting them.
func (t *Throttler) Clear() {
	t.buf = nil
}

// Pending returns the number of buffered bytes.
func (t *Throttler) Pending() int {
	return len(t.buf)
}

// Interval returns the current emission interval.
func (t *Throttler) Interval() time.Duration {
	return t.interval
}

// SetInterval changes the emission interval. Non-positive values are ignored.
func (t *Throttler) SetInterval(d time.Duration) {
	if d > 0 {
		t.interval = d
	}
}

func (t *Throttler) emit() []byte {
	out := t.buf
	t.buf = nil
	t.lastEmit = t.now()
	return out
}
