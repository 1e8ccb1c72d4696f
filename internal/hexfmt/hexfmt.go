// Package hexfmt renders and parses the space-separated uppercase hex text
// used for packets, byte fields and hex-encoded sends.
package hexfmt

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// ErrInvalidHex is returned for odd-length input or a non-hex character.
var ErrInvalidHex = errors.New("invalid hex string")

const digits = "0123456789ABCDEF"

// Format renders b as "AA 55 01".
func Format(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b)*3 - 1)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(digits[c>>4])
		sb.WriteByte(digits[c&0x0f])
	}
	return sb.String()
}

// Parse decodes hex text, ignoring all whitespace.
func Parse(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if len(clean)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidHex, "length %d must be even", len(clean))
	}
	out, err := hex.DecodeString(clean)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidHex, "%v", err)
	}
	return out, nil
}
