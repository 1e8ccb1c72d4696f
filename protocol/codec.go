package protocol

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReadJSON decodes a JSON array of descriptors, or a single descriptor object.
func ReadJSON(r io.Reader) ([]Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read protocols")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var d Descriptor
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, errors.Wrap(err, "decode protocol")
		}
		return []Descriptor{d}, nil
	}
	var out []Descriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decode protocols")
	}
	return out, nil
}

// WriteJSON encodes descriptors as an indented JSON array.
func WriteJSON(w io.Writer, ds []Descriptor) error {
	if ds == nil {
		ds = []Descriptor{}
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode protocols")
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Import registers every descriptor read from r and returns how many were added.
func (r *Registry) Import(src io.Reader) (int, error) {
	ds, err := ReadJSON(src)
	if err != nil {
		return 0, err
	}
	for i, d := range ds {
		if err := r.Register(d); err != nil {
			return i, err
		}
	}
	return len(ds), nil
}

// Export writes every registered descriptor to w.
func (r *Registry) Export(w io.Writer) error {
	return WriteJSON(w, r.List())
}
