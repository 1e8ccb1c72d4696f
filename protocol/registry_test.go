package protocol

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterReplaceRemove(t *testing.T) {
	r := NewRegistry()
	d := sensorProtocol()
	require.NoError(t, r.Register(d))

	got, ok := r.Get(d.ID)
	require.True(t, ok)
	require.Equal(t, "sensor", got.Name)

	d.Name = "sensor-v2"
	require.NoError(t, r.Register(d))
	require.Len(t, r.List(), 1)
	got, _ = r.Get(d.ID)
	require.Equal(t, "sensor-v2", got.Name)

	r.Remove(d.ID)
	_, ok = r.Get(d.ID)
	require.False(t, ok)
	require.Empty(t, r.List())
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	require.ErrorIs(t, r.Register(Descriptor{Name: "no id"}), ErrInvalidDescriptor)
	require.Empty(t, r.List())
}

func TestRegistry_StoredCopyIsIsolated(t *testing.T) {
	r := NewRegistry()
	d := sensorProtocol()
	require.NoError(t, r.Register(d))

	d.Header[0] = 0x00
	got, _ := r.Get(d.ID)
	require.Equal(t, byte(0xAA), got.Header[0])

	got.Fields[0].Name = "mutated"
	again, _ := r.Get(d.ID)
	require.Equal(t, "id", again.Fields[0].Name)
}

func TestRegistry_ListOrder(t *testing.T) {
	r := NewRegistry()
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(Descriptor{ID: id, Name: "same", CreatedAt: int64(10 - i)}))
	}
	require.NoError(t, r.Register(Descriptor{ID: "z", Name: "same", CreatedAt: 8}))

	var ids []string
	for _, d := range r.List() {
		ids = append(ids, d.ID)
	}
	require.Equal(t, []string{"b", "z", "a", "c"}, ids)
}

func TestRegistry_ActiveParse(t *testing.T) {
	r := NewRegistry()
	data := []byte{0xAA, 0x55, 0x07, 0xFE, 0xFF, 'a', 'b', 'c', 0x0D, 0x0A}

	_, ok := r.Parse(data)
	require.False(t, ok, "no active protocol")

	d := sensorProtocol()
	r.SetActive(d.ID)
	_, ok = r.Parse(data)
	require.False(t, ok, "active id not registered yet")

	require.NoError(t, r.Register(d))
	f, ok := r.Parse(data)
	require.True(t, ok)
	require.True(t, f.Valid)
	require.Equal(t, "7", f.Fields[0].Value)

	r.Remove(d.ID)
	_, active := r.Active()
	require.False(t, active)

	require.NoError(t, r.Register(d))
	_, ok = r.Parse(data)
	require.False(t, ok, "removal cleared the active id")

	r.SetActive(d.ID)
	r.SetActive("")
	_, ok = r.Parse(data)
	require.False(t, ok)
}

func TestRegistry_RemoveOtherKeepsActive(t *testing.T) {
	r := NewRegistry()
	a, b := sensorProtocol(), sensorProtocol()
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))
	r.SetActive(a.ID)
	r.Remove(b.ID)
	id, ok := r.Active()
	require.True(t, ok)
	require.Equal(t, a.ID, id)
}

func TestRegistry_ParseWith(t *testing.T) {
	r := NewRegistry()
	_, err := r.ParseWith("missing", []byte{1})
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "missing")

	d := sensorProtocol()
	require.NoError(t, r.Register(d))
	f, err := r.ParseWith(d.ID, []byte{0x00})
	require.NoError(t, err)
	require.False(t, f.Valid)
	require.Equal(t, MsgInsufficientData, f.Error)
}

func TestRegistry_ImportExport(t *testing.T) {
	src := NewRegistry()
	require.NoError(t, src.Register(sensorProtocol()))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := NewRegistry()
	n, err := dst.Import(&buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, src.List(), dst.List())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	d := sensorProtocol()
	require.NoError(t, r.Register(d))
	r.SetActive(d.ID)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Parse([]byte{0xAA, 0x55, 1, 2, 3, 0x0D, 0x0A})
				_ = r.List()
				if j%50 == 0 {
					_ = r.Register(d)
				}
			}
		}()
	}
	wg.Wait()
}
