package hexfmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "", Format(nil))
	require.Equal(t, "0A", Format([]byte{0x0a}))
	require.Equal(t, "AA 55 00 FF", Format([]byte{0xaa, 0x55, 0x00, 0xff}))
}

func TestParse(t *testing.T) {
	got, err := Parse("aa 55\t0F\nff")
	require.NoError(t, err)
	require.Equal(t, []byte{0xaa, 0x55, 0x0f, 0xff}, got)

	got, err = Parse("")
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = Parse("ABC")
	require.ErrorIs(t, err, ErrInvalidHex)

	_, err = Parse("ZZ")
	require.ErrorIs(t, err, ErrInvalidHex)
}
