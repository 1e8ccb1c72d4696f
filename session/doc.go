// Package session runs one serial link at a time: it opens the port, reads
// from it on a background goroutine, coalesces received bytes through a
// throttle.Throttler and emits them as hex DataPackets to an Emitter.
//
// Decoding is left to callers (see package protocol); the reader holds no
// parser state.
//
// Closing is synchronous. Close returns only after the reader has observed
// the stop signal and exited, so no read runs against a released port.
package session
