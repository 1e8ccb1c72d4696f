package session

import (
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/serialscope"
	"github.com/luhtfiimanal/serialscope/internal/hexfmt"
	"github.com/luhtfiimanal/serialscope/throttle"
)

var (
	ErrAlreadyOpen = errors.New("serial port already open")
	ErrNotOpen     = errors.New("serial port not open")
)

const (
	DefaultBufferSize   = 4096
	DefaultPollInterval = 10 * time.Millisecond
)

// Port is the hardware handle a Manager drives. Read must return within a
// bounded time and report a timeout as (0, nil).
type Port interface {
	io.ReadWriter
	Flush() error
	Close() error
}

// Opener creates a Port. Returned errors should name the port.
type Opener func(serial.Config) (Port, error)

// DefaultOpener opens a Linux serial port.
func DefaultOpener(cfg serial.Config) (Port, error) {
	p, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type options struct {
	logger           *zap.Logger
	emitter          Emitter
	opener           Opener
	throttleInterval time.Duration
	bufferSize       int
	pollInterval     time.Duration
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithEmitter(e Emitter) Option {
	return func(o *options) { o.emitter = e }
}

func WithOpener(fn Opener) Option {
	return func(o *options) { o.opener = fn }
}

// WithThrottleInterval sets the minimum spacing of receive batches.
func WithThrottleInterval(d time.Duration) Option {
	return func(o *options) { o.throttleInterval = d }
}

// WithBufferSize sets the size of the reader's read buffer.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithPollInterval sets the sleep between reader iterations.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// Manager owns at most one open port and the goroutine reading from it.
//
// The port handle is guarded by portMu, held for a single read, write or
// close and never across a sleep. running is the only signal the reader
// watches; Close clears it and waits for the reader before releasing the
// handle, so no read happens after Close returns.
type Manager struct {
	opts options
	log  *zap.Logger

	lifecycleMu sync.Mutex // serializes Open and Close

	portMu   sync.Mutex // never held while acquiring cfgMu
	port     Port
	portName string

	cfgMu  sync.Mutex
	config *serial.Config

	running    atomic.Bool
	readerDone chan struct{}
}

func NewManager(opts ...Option) *Manager {
	o := options{
		throttleInterval: throttle.DefaultInterval,
		bufferSize:       DefaultBufferSize,
		pollInterval:     DefaultPollInterval,
		opener:           DefaultOpener,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.emitter == nil {
		o.emitter = nopEmitter{}
	}
	if o.bufferSize <= 0 {
		o.bufferSize = DefaultBufferSize
	}
	RegisterMetrics()
	return &Manager{opts: o, log: o.logger}
}

// Open opens the port described by cfg and starts the background reader.
func (m *Manager) Open(cfg serial.Config) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	cfg = cfg.WithDefaults()
	log := m.log.With(zap.String("port", cfg.PortName))

	m.portMu.Lock()
	if m.port != nil {
		m.portMu.Unlock()
		return ErrAlreadyOpen
	}
	port, err := m.opts.opener(cfg)
	if err != nil {
		m.portMu.Unlock()
		log.Warn("open failed", zap.Error(err))
		return err
	}
	m.port = port
	m.portName = cfg.PortName
	m.portMu.Unlock()

	m.cfgMu.Lock()
	m.config = &cfg
	m.cfgMu.Unlock()

	m.running.Store(true)
	m.readerDone = make(chan struct{})
	go m.readLoop(m.readerDone, cfg.PortName, log)

	openSessions.Inc()
	log.Info("serial port opened",
		zap.Int("baud", cfg.BaudRate),
		zap.String("data_bits", string(cfg.DataBits)),
		zap.String("stop_bits", string(cfg.StopBits)),
		zap.String("parity", string(cfg.Parity)),
		zap.String("flow_control", string(cfg.FlowControl)))
	m.opts.emitter.EmitStatus(StatusOpen)
	return nil
}

// Close stops the reader, waits for it to exit and releases the port.
func (m *Manager) Close() error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.running.Store(false)
	if m.readerDone != nil {
		<-m.readerDone
		m.readerDone = nil
	}

	m.portMu.Lock()
	port := m.port
	m.port = nil
	m.portName = ""
	m.portMu.Unlock()
	if port == nil {
		return ErrNotOpen
	}

	m.cfgMu.Lock()
	name := m.config.PortName
	m.config = nil
	m.cfgMu.Unlock()

	log := m.log.With(zap.String("port", name))
	if err := port.Close(); err != nil {
		log.Warn("close port", zap.Error(err))
	}
	openSessions.Dec()
	log.Info("serial port closed")
	m.opts.emitter.EmitStatus(StatusClosed)
	return nil
}

// Send writes b and waits for it to drain.
func (m *Manager) Send(b []byte) error {
	if err := m.write(b); err != nil {
		return err
	}
	m.opts.emitter.EmitData(hexPacket(b, DirectionTx))
	return nil
}

// SendString encodes data per format and sends it. Malformed hex fails
// before anything is written.
func (m *Manager) SendString(data string, format Format) error {
	b, err := Encode(data, format)
	if err != nil {
		return err
	}
	if err := m.write(b); err != nil {
		return err
	}
	rendered := data
	if format == FormatHex {
		rendered = hexfmt.Format(b)
	}
	m.opts.emitter.EmitData(newPacket(rendered, DirectionTx, format))
	return nil
}

func (m *Manager) write(b []byte) error {
	m.portMu.Lock()
	defer m.portMu.Unlock()
	if m.port == nil {
		return ErrNotOpen
	}
	if _, err := m.port.Write(b); err != nil {
		return errors.Wrap(err, "send failed")
	}
	if err := m.port.Flush(); err != nil {
		return errors.Wrap(err, "flush failed")
	}
	name := m.portName
	bytesTotal.WithLabelValues(name, string(DirectionTx)).Add(float64(len(b)))
	m.log.Debug("sent", zap.String("port", name), zap.Int("bytes", len(b)))
	return nil
}

// Status reports open while a port handle is held.
func (m *Manager) Status() Status {
	m.portMu.Lock()
	defer m.portMu.Unlock()
	if m.port != nil {
		return StatusOpen
	}
	return StatusClosed
}

// Config returns the settings of the open port.
func (m *Manager) Config() (serial.Config, bool) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	if m.config == nil {
		return serial.Config{}, false
	}
	return *m.config, true
}

func (m *Manager) readLoop(done chan struct{}, name string, log *zap.Logger) {
	defer close(done)

	th := throttle.New(m.opts.throttleInterval)
	buf := make([]byte, m.opts.bufferSize)
	rxBytes := bytesTotal.WithLabelValues(name, string(DirectionRx))
	readErrors := readErrorsTotal.WithLabelValues(name)
	batches := batchesTotal.WithLabelValues(name)
	emit := func(batch []byte) {
		batches.Inc()
		m.opts.emitter.EmitData(hexPacket(batch, DirectionRx))
	}
	failing := false

	for m.running.Load() {
		m.portMu.Lock()
		if m.port == nil {
			m.portMu.Unlock()
			log.Debug("port released without stopping the reader")
			break
		}
		n, err := m.port.Read(buf)
		m.portMu.Unlock()

		switch {
		case err != nil:
			readErrors.Inc()
			if !failing {
				log.Warn("read failed", zap.Error(err))
				failing = true
			}
		case n > 0:
			failing = false
			rxBytes.Add(float64(n))
			if batch, ok := th.Push(buf[:n]); ok {
				emit(batch)
			}
		default:
			if batch, ok := th.Tick(); ok {
				emit(batch)
			}
		}

		time.Sleep(m.opts.pollInterval)
	}

	if batch, ok := th.Flush(); ok {
		emit(batch)
	}
	log.Debug("reader stopped")
}
