package serial

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultReadTimeout bounds a single Read call when Config.ReadTimeout is unset.
const DefaultReadTimeout = 100 * time.Millisecond

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid serial config")
	// ErrUnsupportedBaudRate is returned when the baud rate has no termios constant.
	ErrUnsupportedBaudRate = errors.New("unsupported baud rate")
)

// DataBits is the number of data bits per character.
type DataBits string

const (
	DataBitsFive  DataBits = "five"
	DataBitsSix   DataBits = "six"
	DataBitsSeven DataBits = "seven"
	DataBitsEight DataBits = "eight"
)

// Bits returns the numeric width, or 0 for an unknown value.
func (d DataBits) Bits() int {
	switch d {
	case DataBitsFive:
		return 5
	case DataBitsSix:
		return 6
	case DataBitsSeven:
		return 7
	case DataBitsEight:
		return 8
	}
	return 0
}

// StopBits is the number of stop bits per character.
type StopBits string

const (
	StopBitsOne StopBits = "one"
	StopBitsTwo StopBits = "two"
)

// Parity selects the parity mode.
type Parity string

const (
	ParityNone Parity = "none"
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

// FlowControl selects hardware (RTS/CTS), software (XON/XOFF) or no flow control.
type FlowControl string

const (
	FlowControlNone     FlowControl = "none"
	FlowControlSoftware FlowControl = "software"
	FlowControlHardware FlowControl = "hardware"
)

// Config holds the line settings used to open a serial port.
// Empty enum fields fall back to 8N1 without flow control.
type Config struct {
	PortName    string      `json:"portName" toml:"port_name"`
	BaudRate    int         `json:"baudRate" toml:"baud_rate"`
	DataBits    DataBits    `json:"dataBits" toml:"data_bits"`
	StopBits    StopBits    `json:"stopBits" toml:"stop_bits"`
	Parity      Parity      `json:"parity" toml:"parity"`
	FlowControl FlowControl `json:"flowControl" toml:"flow_control"`

	// ReadTimeout bounds how long Read waits for data. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration `json:"-" toml:"read_timeout"`
}

// DefaultConfig returns 115200 8N1 without flow control for the given port.
func DefaultConfig(portName string) Config {
	return Config{
		PortName:    portName,
		BaudRate:    115200,
		DataBits:    DataBitsEight,
		StopBits:    StopBitsOne,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
		ReadTimeout: DefaultReadTimeout,
	}
}

// WithDefaults fills every unset field from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig(c.PortName)
	if c.BaudRate == 0 {
		c.BaudRate = d.BaudRate
	}
	if c.DataBits == "" {
		c.DataBits = d.DataBits
	}
	if c.StopBits == "" {
		c.StopBits = d.StopBits
	}
	if c.Parity == "" {
		c.Parity = d.Parity
	}
	if c.FlowControl == "" {
		c.FlowControl = d.FlowControl
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	return c
}

// Validate reports the first invalid setting. It does not apply defaults.
func (c Config) Validate() error {
	if strings.TrimSpace(c.PortName) == "" {
		return errors.Wrap(ErrInvalidConfig, "port name is required")
	}
	if c.BaudRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "baud rate %d", c.BaudRate)
	}
	if c.DataBits.Bits() == 0 {
		return errors.Wrapf(ErrInvalidConfig, "data bits %q", c.DataBits)
	}
	switch c.StopBits {
	case StopBitsOne, StopBitsTwo:
	default:
		return errors.Wrapf(ErrInvalidConfig, "stop bits %q", c.StopBits)
	}
	switch c.Parity {
	case ParityNone, ParityOdd, ParityEven:
	default:
		return errors.Wrapf(ErrInvalidConfig, "parity %q", c.Parity)
	}
	switch c.FlowControl {
	case FlowControlNone, FlowControlSoftware, FlowControlHardware:
	default:
		return errors.Wrapf(ErrInvalidConfig, "flow control %q", c.FlowControl)
	}
	return nil
}
