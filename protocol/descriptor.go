package protocol

import (
	"bytes"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/luhtfiimanal/serialscope/internal/hexfmt"
)

// ErrInvalidDescriptor is returned by Descriptor.Validate.
var ErrInvalidDescriptor = errors.New("invalid protocol descriptor")

// FieldType is the closed set of value encodings a field can have.
type FieldType string

const (
	Uint8   FieldType = "uint8"
	Uint16  FieldType = "uint16"
	Uint32  FieldType = "uint32"
	Uint64  FieldType = "uint64"
	Int8    FieldType = "int8"
	Int16   FieldType = "int16"
	Int32   FieldType = "int32"
	Int64   FieldType = "int64"
	Float32 FieldType = "float32"
	Float64 FieldType = "float64"
	String  FieldType = "string"
	Bytes   FieldType = "bytes"
	Hex     FieldType = "hex"
)

// Size returns the intrinsic width of fixed-width types. Variable-width types
// (string, bytes, hex) report false.
func (t FieldType) Size() (int, bool) {
	switch t {
	case Uint8, Int8:
		return 1, true
	case Uint16, Int16:
		return 2, true
	case Uint32, Int32, Float32:
		return 4, true
	case Uint64, Int64, Float64:
		return 8, true
	}
	return 0, false
}

func (t FieldType) valid() bool {
	switch t {
	case String, Bytes, Hex:
		return true
	}
	_, ok := t.Size()
	return ok
}

// ByteOrder applies to multi-byte numeric fields only.
type ByteOrder string

const (
	BigEndian    ByteOrder = "bigendian"
	LittleEndian ByteOrder = "littleendian"
)

// ChecksumKind names the trailing checksum of a frame. Only its encoded width
// is used (for MinFrameLength); checksum values are not verified.
type ChecksumKind string

const (
	ChecksumNone  ChecksumKind = "none"
	ChecksumSum8  ChecksumKind = "sum8"
	ChecksumSum16 ChecksumKind = "sum16"
	ChecksumCRC8  ChecksumKind = "crc8"
	ChecksumCRC16 ChecksumKind = "crc16"
	ChecksumCRC32 ChecksumKind = "crc32"
	ChecksumXor8  ChecksumKind = "xor8"
)

// Size returns the number of bytes the checksum occupies.
func (c ChecksumKind) Size() int {
	switch c {
	case ChecksumSum8, ChecksumCRC8, ChecksumXor8:
		return 1
	case ChecksumSum16, ChecksumCRC16:
		return 2
	case ChecksumCRC32:
		return 4
	}
	return 0
}

func (c ChecksumKind) valid() bool {
	return c == "" || c == ChecksumNone || c.Size() > 0
}

// ByteSeq is a fixed byte sequence such as a frame header. It encodes as a JSON
// array of numbers and decodes from either that form or a hex string.
type ByteSeq []byte

var _ toml.Unmarshaler = (*ByteSeq)(nil)

func (b ByteSeq) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	nums := make([]int, len(b))
	for i, c := range b {
		nums[i] = int(c)
	}
	return json.Marshal(nums)
}

// UnmarshalJSON accepts a number array or a hex string.
func (b *ByteSeq) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return errors.New("byte sequence: empty input")
	case bytes.Equal(data, []byte("null")):
		*b = nil
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "byte sequence")
		}
		return b.setHex(s)
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return errors.Wrap(err, "byte sequence")
	}
	out := make(ByteSeq, 0, len(nums))
	for _, n := range nums {
		if n < 0 || n > 0xff {
			return errors.Newf("byte sequence element %d out of range", n)
		}
		out = append(out, byte(n))
	}
	*b = out
	return nil
}

// UnmarshalTOML accepts an integer array or a hex string.
func (b *ByteSeq) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		return b.setHex(v)
	case []any:
		out := make(ByteSeq, 0, len(v))
		for _, e := range v {
			n, ok := e.(int64)
			if !ok || n < 0 || n > 0xff {
				return errors.Newf("byte sequence element %v out of range", e)
			}
			out = append(out, byte(n))
		}
		*b = out
		return nil
	}
	return errors.Newf("byte sequence: unexpected %T", v)
}

func (b *ByteSeq) setHex(s string) error {
	raw, err := hexfmt.Parse(s)
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// String renders the sequence as space-separated hex.
func (b ByteSeq) String() string {
	return hexfmt.Format(b)
}

// Field describes how to extract one value. Offset is relative to the first
// byte after the header. Length applies to variable-width types only; zero
// means unspecified, which reads a single byte.
type Field struct {
	Name        string    `json:"name" toml:"name"`
	FieldType   FieldType `json:"fieldType" toml:"field_type"`
	Offset      int       `json:"offset" toml:"offset"`
	Length      int       `json:"length,omitempty" toml:"length"`
	ByteOrder   ByteOrder `json:"byteOrder" toml:"byte_order"`
	Description string    `json:"description,omitempty" toml:"description"`
	// Visible is a display hint; parsing ignores it.
	Visible bool `json:"visible" toml:"visible"`
}

// NewField returns a visible big-endian field.
func NewField(name string, t FieldType, offset int) Field {
	return Field{
		Name:      name,
		FieldType: t,
		Offset:    offset,
		ByteOrder: BigEndian,
		Visible:   true,
	}
}

func (f Field) WithLength(n int) Field {
	f.Length = n
	return f
}

func (f Field) WithByteOrder(o ByteOrder) Field {
	f.ByteOrder = o
	return f
}

func (f Field) WithDescription(d string) Field {
	f.Description = d
	return f
}

// Width is the number of bytes the field consumes.
func (f Field) Width() int {
	if n, ok := f.FieldType.Size(); ok {
		return n
	}
	if f.Length > 0 {
		return f.Length
	}
	return 1
}

// Descriptor is a user-defined binary protocol. Treat registered descriptors
// as immutable; updates replace the whole record.
type Descriptor struct {
	ID          string       `json:"id" toml:"id"`
	Name        string       `json:"name" toml:"name"`
	Description string       `json:"description,omitempty" toml:"description"`
	Header      ByteSeq      `json:"header,omitempty" toml:"header"`
	Footer      ByteSeq      `json:"footer,omitempty" toml:"footer"`
	Fields      []Field      `json:"fields" toml:"fields"`
	Checksum    ChecksumKind `json:"checksum,omitempty" toml:"checksum"`
	CreatedAt   int64        `json:"createdAt" toml:"created_at"`
	UpdatedAt   int64        `json:"updatedAt" toml:"updated_at"`
}

// NewDescriptor returns an empty descriptor with a generated id.
func NewDescriptor(name string) Descriptor {
	now := time.Now().UnixMilli()
	return Descriptor{
		ID:        uuid.NewString(),
		Name:      name,
		Fields:    []Field{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (d Descriptor) WithHeader(h []byte) Descriptor {
	d.Header = append(ByteSeq{}, h...)
	return d
}

func (d Descriptor) WithFooter(f []byte) Descriptor {
	d.Footer = append(ByteSeq{}, f...)
	return d
}

// AddField appends f and bumps UpdatedAt.
func (d *Descriptor) AddField(f Field) {
	d.Fields = append(d.Fields, f)
	d.UpdatedAt = time.Now().UnixMilli()
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	if d.Header != nil {
		d.Header = append(ByteSeq{}, d.Header...)
	}
	if d.Footer != nil {
		d.Footer = append(ByteSeq{}, d.Footer...)
	}
	d.Fields = append([]Field{}, d.Fields...)
	return d
}

// MinFrameLength is header + furthest field end + footer + checksum width.
// Callers use it to decide when enough bytes have accumulated; Parse does not
// enforce it.
func (d Descriptor) MinFrameLength() int {
	end := 0
	for _, f := range d.Fields {
		end = max(end, addClamped(f.Offset, f.Width()))
	}
	n := addClamped(len(d.Header), end)
	n = addClamped(n, len(d.Footer))
	return addClamped(n, d.Checksum.Size())
}

// addClamped adds two non-negative ints, saturating at math.MaxInt.
func addClamped(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// Validate checks identity and that every enum value is known.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.Wrap(ErrInvalidDescriptor, "id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return errors.Wrapf(ErrInvalidDescriptor, "%s: name is required", d.ID)
	}
	if !d.Checksum.valid() {
		return errors.Wrapf(ErrInvalidDescriptor, "%s: checksum %q", d.ID, d.Checksum)
	}
	for i, f := range d.Fields {
		switch {
		case !f.FieldType.valid():
			return errors.Wrapf(ErrInvalidDescriptor, "%s: field[%d] type %q", d.ID, i, f.FieldType)
		case f.ByteOrder != "" && f.ByteOrder != BigEndian && f.ByteOrder != LittleEndian:
			return errors.Wrapf(ErrInvalidDescriptor, "%s: field[%d] byte order %q", d.ID, i, f.ByteOrder)
		case f.Offset < 0 || f.Length < 0:
			return errors.Wrapf(ErrInvalidDescriptor, "%s: field[%d] negative offset or length", d.ID, i)
		}
	}
	return nil
}
