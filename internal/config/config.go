// Package config loads the TOML file that describes a monitoring setup:
// the port to open, throttle and log settings, and the protocol descriptors.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	serial "github.com/luhtfiimanal/serialscope"
	"github.com/luhtfiimanal/serialscope/internal/logging"
	"github.com/luhtfiimanal/serialscope/protocol"
	"github.com/luhtfiimanal/serialscope/throttle"
)

type File struct {
	Serial         serial.Config         `toml:"serial"`
	Throttle       Throttle              `toml:"throttle"`
	Log            logging.Config        `toml:"log"`
	ActiveProtocol string                `toml:"active_protocol"`
	ProtocolFiles  []string              `toml:"protocol_files"`
	Protocols      []protocol.Descriptor `toml:"protocols"`

	dir string
}

type Throttle struct {
	Interval time.Duration `toml:"interval"`
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrapf(err, "config load failed (%s)", path)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return File{}, errors.Wrapf(err, "config parse failed (%s)", path)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes TOML text. Unknown keys are rejected.
func Parse(text string) (File, error) {
	var cfg File
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return File{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return File{}, errors.Newf("unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

func (f *File) applyDefaults() {
	f.Serial = f.Serial.WithDefaults()
	if f.Throttle.Interval <= 0 {
		f.Throttle.Interval = throttle.DefaultInterval
	}
	if f.Log.Level == "" {
		f.Log.Level = "info"
	}
}

func (f File) Validate() error {
	if err := f.Serial.Validate(); err != nil {
		return errors.Wrap(err, "serial")
	}
	for i, d := range f.Protocols {
		if err := d.Validate(); err != nil {
			return errors.Wrapf(err, "protocols[%d]", i)
		}
	}
	return nil
}

// Registry registers the inline protocols, then every protocol file (JSON,
// resolved relative to the config file), and selects the active protocol.
func (f File) Registry() (*protocol.Registry, error) {
	reg := protocol.NewRegistry()
	for _, d := range f.Protocols {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	for _, name := range f.ProtocolFiles {
		path := name
		if !filepath.IsAbs(path) && f.dir != "" {
			path = filepath.Join(f.dir, path)
		}
		if err := importFile(reg, path); err != nil {
			return nil, err
		}
	}
	reg.SetActive(f.ActiveProtocol)
	return reg, nil
}

func importFile(reg *protocol.Registry, path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "protocol file %s", path)
	}
	defer fh.Close()
	if _, err := reg.Import(fh); err != nil {
		return errors.Wrapf(err, "protocol file %s", path)
	}
	return nil
}
