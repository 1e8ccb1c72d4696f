package serial

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("serial port closed")

// Port provides raw, unbuffered access to a Linux serial port.
// Read waits at most Config.ReadTimeout and reports a timeout as (0, nil).
type Port struct {
	fd        int
	file      *os.File
	done      chan struct{}
	closeOnce sync.Once
	config    Config
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
}

// Open opens a serial port using the provided Config.
// The port is configured for raw, low-latency, non-buffered operation.
func Open(cfg Config) (*Port, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baud, err := baudToUnix(cfg.BaudRate)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open port %s", cfg.PortName)
	}

	fd, err := unix.Open(cfg.PortName, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open port %s", cfg.PortName)
	}
	if err := configure(fd, cfg, baud); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "cannot open port %s", cfg.PortName)
	}

	// Turn back into blocking mode now that config is done
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "cannot open port %s", cfg.PortName)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "pipe")
	}

	return &Port{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.PortName),
		done:   make(chan struct{}),
		config: cfg,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}, nil
}

func configure(fd int, cfg Config, baud uint32) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return errors.Wrap(err, "get termios")
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL |
		unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	termios.Cflag |= unix.CREAD | unix.CLOCAL

	switch cfg.DataBits {
	case DataBitsFive:
		termios.Cflag |= unix.CS5
	case DataBitsSix:
		termios.Cflag |= unix.CS6
	case DataBitsSeven:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}
	if cfg.StopBits == StopBitsTwo {
		termios.Cflag |= unix.CSTOPB
	}
	switch cfg.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
		termios.Iflag |= unix.INPCK
	case ParityEven:
		termios.Cflag |= unix.PARENB
		termios.Iflag |= unix.INPCK
	}
	switch cfg.FlowControl {
	case FlowControlHardware:
		termios.Cflag |= unix.CRTSCTS
	case FlowControlSoftware:
		termios.Iflag |= unix.IXON | unix.IXOFF
	}

	termios.Cflag |= baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	// Readiness is decided by poll, so a single byte completes a read.
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return errors.Wrap(err, "set termios")
	}
	return nil
}

// Config returns the effective settings the port was opened with.
func (s *Port) Config() Config {
	return s.config
}

// Read waits up to the configured read timeout for data and reads what is available.
// A timeout and an empty read both return (0, nil).
func (s *Port) Read(buf []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrClosed
	default:
	}

	pfd := []unix.PollFd{
		{Fd: int32(s.fd), Events: unix.POLLIN},
		{Fd: int32(s.pipeR), Events: unix.POLLIN},
	}
	n, err := unix.Poll(pfd, int(s.config.ReadTimeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "poll")
	}
	if n == 0 {
		return 0, nil
	}
	if pfd[1].Revents&unix.POLLIN != 0 {
		return 0, ErrClosed
	}
	if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
		return 0, nil
	}
	n, err = s.file.Read(buf)
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// Write writes all of b to the port.
func (s *Port) Write(b []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrClosed
	default:
	}
	return s.file.Write(b)
}

// Flush blocks until all written output has been transmitted (tcdrain).
func (s *Port) Flush() error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	return unix.IoctlSetInt(s.fd, unix.TCSBRK, 1)
}

// Close closes the serial port and wakes up a pending Read.
// Safe to call multiple times; subsequent calls are no-ops.
func (s *Port) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		// Wake up poll using self-pipe
		unix.Write(s.pipeW, []byte{1})
		if s.file != nil {
			err = s.file.Close()
		}
		unix.Close(s.pipeR)
		unix.Close(s.pipeW)
	})
	return err
}

var baudRates = map[int]uint32{
	1200:    unix.B1200,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	3000000: unix.B3000000,
	4000000: unix.B4000000,
}

func baudToUnix(baud int) (uint32, error) {
	if b, ok := baudRates[baud]; ok {
		return b, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedBaudRate, "%d", baud)
}
