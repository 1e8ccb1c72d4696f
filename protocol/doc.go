// Package protocol carves raw frames into named, typed fields according to
// user-defined descriptors.
//
// A Descriptor lists an optional header and footer, a checksum kind and an
// ordered set of fields whose offsets count from the first byte after the
// header. Parse checks the header and footer against the whole buffer, then
// decodes each field. A field that runs past the end of the buffer is
// reported as "insufficient data" without invalidating the frame, so partly
// truncated frames still surface what they can.
//
// Checksums only reserve space (see Descriptor.MinFrameLength); their values
// are not verified.
//
// Registry keeps descriptors by id and tracks the active one.
package protocol
