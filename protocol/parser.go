package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/luhtfiimanal/serialscope/internal/hexfmt"
)

// Messages reported in Frame.Error and ParsedField.Value.
const (
	MsgInsufficientData = "insufficient data"
	MsgHeaderMismatch   = "header mismatch"
	MsgFooterMismatch   = "footer mismatch"
	MsgEmpty            = "empty"
)

// ParsedField is the decode result of one Field.
type ParsedField struct {
	Name      string    `json:"name"`
	FieldType FieldType `json:"fieldType"`
	// RawBytes is empty when the frame was too short for the field.
	RawBytes    ByteSeq `json:"rawBytes"`
	Value       string  `json:"value"`
	Description string  `json:"description,omitempty"`
}

// Frame is the result of parsing one buffer.
//
// Valid reflects only structural checks (header, footer). When Valid is false
// Fields is empty and Error is set; when true Error is empty even if some
// fields report insufficient data.
type Frame struct {
	ProtocolName string        `json:"protocolName"`
	RawData      ByteSeq       `json:"rawData"`
	Fields       []ParsedField `json:"fields"`
	Valid        bool          `json:"valid"`
	Error        string        `json:"error,omitempty"`
}

// Parse decodes data against d. It is deterministic and keeps no state.
func Parse(d Descriptor, data []byte) Frame {
	frame := Frame{
		ProtocolName: d.Name,
		RawData:      append(ByteSeq{}, data...),
		Fields:       []ParsedField{},
	}

	if d.Header != nil {
		if len(data) < len(d.Header) {
			return invalid(frame, MsgInsufficientData)
		}
		if !bytes.Equal(data[:len(d.Header)], d.Header) {
			return invalid(frame, MsgHeaderMismatch)
		}
	}
	if d.Footer != nil {
		if len(data) < len(d.Footer) {
			return invalid(frame, MsgInsufficientData)
		}
		if !bytes.Equal(data[len(data)-len(d.Footer):], d.Footer) {
			return invalid(frame, MsgFooterMismatch)
		}
	}

	// The header check above guarantees base <= len(data).
	base := len(d.Header)
	avail := len(data) - base
	for _, f := range d.Fields {
		pf := ParsedField{
			Name:        f.Name,
			FieldType:   f.FieldType,
			RawBytes:    ByteSeq{},
			Description: f.Description,
		}
		width := f.Width()
		if f.Offset < 0 || f.Offset > avail || width > avail-f.Offset {
			pf.Value = MsgInsufficientData
			frame.Fields = append(frame.Fields, pf)
			continue
		}
		start := base + f.Offset
		pf.RawBytes = append(ByteSeq{}, data[start:start+width]...)
		pf.Value = decodeValue(pf.RawBytes, f.FieldType, f.ByteOrder)
		frame.Fields = append(frame.Fields, pf)
	}

	frame.Valid = true
	return frame
}

func invalid(frame Frame, msg string) Frame {
	frame.Valid = false
	frame.Error = msg
	return frame
}

func decodeValue(b []byte, t FieldType, order ByteOrder) string {
	if len(b) == 0 {
		return MsgEmpty
	}
	if need, ok := t.Size(); ok && len(b) < need {
		return fmt.Sprintf("%s (need %d bytes)", MsgInsufficientData, need)
	}

	var bo binary.ByteOrder = binary.BigEndian
	if order == LittleEndian {
		bo = binary.LittleEndian
	}

	switch t {
	case Uint8:
		return strconv.FormatUint(uint64(b[0]), 10)
	case Int8:
		return strconv.FormatInt(int64(int8(b[0])), 10)
	case Uint16:
		return strconv.FormatUint(uint64(bo.Uint16(b)), 10)
	case Int16:
		return strconv.FormatInt(int64(int16(bo.Uint16(b))), 10)
	case Uint32:
		return strconv.FormatUint(uint64(bo.Uint32(b)), 10)
	case Int32:
		return strconv.FormatInt(int64(int32(bo.Uint32(b))), 10)
	case Uint64:
		return strconv.FormatUint(bo.Uint64(b), 10)
	case Int64:
		return strconv.FormatInt(int64(bo.Uint64(b)), 10)
	case Float32:
		return formatFloat(float64(math.Float32frombits(bo.Uint32(b))), 6, 32)
	case Float64:
		return formatFloat(math.Float64frombits(bo.Uint64(b)), 10, 64)
	case String:
		return lossyUTF8(b)
	default:
		return hexfmt.Format(b)
	}
}

func formatFloat(v float64, prec, bitSize int) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', prec, bitSize)
}

// lossyUTF8 replaces each maximal ill-formed subpart of b with one U+FFFD.
func lossyUTF8(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size > 1 {
			sb.Write(b[:size])
			b = b[size:]
			continue
		}
		sb.WriteRune(utf8.RuneError)
		b = b[invalidPrefix(b):]
	}
	return sb.String()
}

// invalidPrefix returns how many bytes of b, at least one, form the maximal
// prefix of a well-formed sequence that turned out truncated or broken.
func invalidPrefix(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(b) && b[n] >= lo && b[n] <= hi {
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}
