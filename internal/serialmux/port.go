package serialmux

import "io"

// SerialPorter is the minimal interface the mux needs from a serial port,
// so tests and the synthetic source can stand in for hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
