// Package serial provides a minimal, Linux-only serial port for monitoring
// tools that move raw bytes between a device and an application.
//
// Features:
//   - Raw termios I/O on Linux via golang.org/x/sys/unix, no buffering delays
//   - Full line settings: baud rate, data bits, stop bits, parity, flow control
//   - Timeout-bounded reads (a timeout is not an error)
//   - Self-pipe mechanism so Close wakes a pending Read
//   - Host port enumeration with USB, Bluetooth and PCI inference
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	cfg := serial.DefaultConfig("/dev/ttyUSB0")
//	port, err := serial.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	if _, err := port.Write([]byte("AT\r\n")); err != nil {
//	    log.Println("Write failed:", err)
//	}
//	_ = port.Flush()
//
//	buf := make([]byte, 4096)
//	n, err := port.Read(buf) // n == 0 on timeout
//
// Higher level pieces live in sub-packages: throttle batches reads, protocol
// decodes frames against user-defined descriptors, and session runs the
// background reader for one open port.
package serial
