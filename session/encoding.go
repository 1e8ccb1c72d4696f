package session

import (
	"github.com/cockroachdb/errors"

	"github.com/luhtfiimanal/serialscope/internal/hexfmt"
)

var (
	// ErrInvalidHex is returned for odd-length or non-hex send input.
	ErrInvalidHex = hexfmt.ErrInvalidHex
	// ErrUnsupportedFormat is returned for an unknown send format.
	ErrUnsupportedFormat = errors.New("unsupported data format")
)

// Encode converts send input to bytes. Hex input may contain whitespace.
func Encode(data string, format Format) ([]byte, error) {
	switch format {
	case FormatHex:
		return hexfmt.Parse(data)
	case FormatASCII:
		return []byte(data), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
}
