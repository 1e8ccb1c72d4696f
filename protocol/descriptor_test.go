package protocol

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_MinFrameLength(t *testing.T) {
	d := sensorProtocol()
	// header 2 + furthest field end (3+3) + footer 2 + crc16 2
	require.Equal(t, 12, d.MinFrameLength())

	empty := NewDescriptor("empty")
	require.Zero(t, empty.MinFrameLength())

	d = NewDescriptor("default-width")
	d.AddField(NewField("h", Hex, 4))
	d.Checksum = ChecksumCRC32
	require.Equal(t, 9, d.MinFrameLength())

	huge := NewDescriptor("huge").WithHeader([]byte{0x01})
	huge.AddField(NewField("far", Uint8, math.MaxInt))
	huge.AddField(NewField("long", Bytes, 1).WithLength(math.MaxInt))
	require.Equal(t, math.MaxInt, huge.MinFrameLength())
}

func TestChecksumKind_Size(t *testing.T) {
	sizes := map[ChecksumKind]int{
		ChecksumNone: 0, ChecksumSum8: 1, ChecksumSum16: 2,
		ChecksumCRC8: 1, ChecksumCRC16: 2, ChecksumCRC32: 4, ChecksumXor8: 1,
	}
	for k, n := range sizes {
		require.Equal(t, n, k.Size(), string(k))
	}
}

func TestField_Width(t *testing.T) {
	require.Equal(t, 8, NewField("f", Float64, 0).WithLength(2).Width())
	require.Equal(t, 5, NewField("s", String, 0).WithLength(5).Width())
	require.Equal(t, 1, NewField("b", Bytes, 0).Width())
}

func TestDescriptor_Validate(t *testing.T) {
	require.NoError(t, sensorProtocol().Validate())

	d := sensorProtocol()
	d.ID = ""
	require.ErrorIs(t, d.Validate(), ErrInvalidDescriptor)

	d = sensorProtocol()
	d.Fields[0].FieldType = "uint24"
	require.ErrorIs(t, d.Validate(), ErrInvalidDescriptor)

	d = sensorProtocol()
	d.Fields[1].ByteOrder = "middle"
	require.ErrorIs(t, d.Validate(), ErrInvalidDescriptor)

	d = sensorProtocol()
	d.Checksum = "md5"
	require.ErrorIs(t, d.Validate(), ErrInvalidDescriptor)

	d = sensorProtocol()
	d.Fields[2].Offset = -1
	require.ErrorIs(t, d.Validate(), ErrInvalidDescriptor)
}

func TestDescriptor_CloneIsDeep(t *testing.T) {
	d := sensorProtocol()
	c := d.Clone()
	c.Header[0] = 0x00
	c.Fields[0].Name = "changed"
	require.Equal(t, byte(0xAA), d.Header[0])
	require.Equal(t, "id", d.Fields[0].Name)
}

func TestReadJSON_OriginalWireFormat(t *testing.T) {
	doc := `[{
		"id": "p1",
		"name": "meter",
		"header": [170, 85],
		"footer": "0d 0a",
		"fields": [
			{"name": "v", "fieldType": "uint16", "offset": 0, "byteOrder": "littleendian", "visible": true},
			{"name": "s", "fieldType": "string", "offset": 2, "length": 4, "byteOrder": "bigendian", "visible": false}
		],
		"checksum": "xor8",
		"createdAt": 1700000000000,
		"updatedAt": 1700000000001
	}]`
	ds, err := ReadJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, ds, 1)
	d := ds[0]
	require.Equal(t, ByteSeq{0xAA, 0x55}, d.Header)
	require.Equal(t, ByteSeq{0x0D, 0x0A}, d.Footer)
	require.Equal(t, LittleEndian, d.Fields[0].ByteOrder)
	require.Equal(t, 4, d.Fields[1].Length)
	require.False(t, d.Fields[1].Visible)
	require.Equal(t, ChecksumXor8, d.Checksum)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, ds))
	require.Contains(t, buf.String(), `"header": [`)
	require.Contains(t, buf.String(), `"fieldType": "uint16"`)

	again, err := ReadJSON(&buf)
	require.NoError(t, err)
	require.Equal(t, ds, again)
}

func TestReadJSON_SingleObjectAndErrors(t *testing.T) {
	ds, err := ReadJSON(strings.NewReader(`{"id":"x","name":"x","fields":[]}`))
	require.NoError(t, err)
	require.Len(t, ds, 1)

	ds, err = ReadJSON(strings.NewReader("  "))
	require.NoError(t, err)
	require.Empty(t, ds)

	_, err = ReadJSON(strings.NewReader(`{"id":"x","header":[300]}`))
	require.Error(t, err)
}

func TestByteSeq_JSON(t *testing.T) {
	var b ByteSeq
	require.NoError(t, json.Unmarshal([]byte(` [ 0, 16 , 255 ] `), &b))
	require.Equal(t, ByteSeq{0x00, 0x10, 0xFF}, b)

	require.NoError(t, json.Unmarshal([]byte(`"aa\t55"`), &b))
	require.Equal(t, ByteSeq{0xAA, 0x55}, b)

	require.NoError(t, json.Unmarshal([]byte(`"\u0041\u0042 01"`), &b))
	require.Equal(t, ByteSeq{0xAB, 0x01}, b)

	require.NoError(t, json.Unmarshal([]byte(`[]`), &b))
	require.Equal(t, ByteSeq{}, b)

	for _, bad := range []string{`[-1]`, `[256]`, `[1.5]`, `"abc"`, `{}`, `true`} {
		require.Error(t, json.Unmarshal([]byte(bad), &b), bad)
	}

	out, err := json.Marshal(ByteSeq{0xAA, 0x00})
	require.NoError(t, err)
	require.Equal(t, `[170,0]`, string(out))
}

func TestByteSeq_TOML(t *testing.T) {
	var doc struct {
		Protocols []Descriptor `toml:"protocols"`
	}
	_, err := toml.Decode(`
[[protocols]]
id = "t1"
name = "toml"
header = [0xAA, 0x55]
footer = "0D0A"

[[protocols.fields]]
name = "v"
field_type = "uint8"
offset = 0
`, &doc)
	require.NoError(t, err)
	require.Len(t, doc.Protocols, 1)
	require.Equal(t, ByteSeq{0xAA, 0x55}, doc.Protocols[0].Header)
	require.Equal(t, ByteSeq{0x0D, 0x0A}, doc.Protocols[0].Footer)
	require.Equal(t, Uint8, doc.Protocols[0].Fields[0].FieldType)

	var bad struct {
		H ByteSeq `toml:"h"`
	}
	_, err = toml.Decode(`h = [256]`, &bad)
	require.Error(t, err)
}
