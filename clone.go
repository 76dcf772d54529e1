// This package is a pure golang implementation of the clone-mode
// programming protocols used by amateur radio handhelds.
// It can download a radio's full memory image over a serial line,
// decode the channel records inside it, apply edits and upload the
// result back without touching unrelated bytes.
package gochirp

import "time"

// Serial line parity
type Parity uint8

const (
	ParityNone Parity = 0
	ParityEven Parity = 1
	ParityOdd  Parity = 2
)

// Serial line flow control
type FlowControl uint8

const (
	FlowNone     FlowControl = 0
	FlowHardware FlowControl = 1
)

// Serial line configuration for one programming session.
// Timeout applies per read/write operation, not to the whole session.
type Config struct {
	Baud     int
	DataBits int
	Parity   Parity
	StopBits int
	Flow     FlowControl
	Timeout  time.Duration
}

// A serial Port as used by the radio drivers.
// One port instance belongs to a single session at a time.
type Port interface {
	// Read exactly n bytes or fail with ErrTimeout
	ReadExact(n int) ([]byte, error)
	// Read until delim is seen (inclusive) or max bytes, else ErrTimeout
	ReadUntil(delim byte, max int) ([]byte, error)
	WriteAll(b []byte) error
	// Block until all written bytes left the device
	Flush() error
	ClearInput() error
	ClearOutput() error
	BytesAvailable() (int, error)
	SetDTR(value bool) error
	SetRTS(value bool) error
	// Change the line rate. Callers coordinate this with the
	// protocol's baud switch point.
	SetBaud(rate int) error
	Close() error
}

// Progress callback invoked at block boundaries during transfers
type ProgressFunc func(done int, total int, msg string)
