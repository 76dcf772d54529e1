// Serial transport backed by go.bug.st/serial.
// One open port belongs to exactly one programming session ; drivers
// sequence every read and write, nothing here is safe for concurrent
// use.
package serial

import (
	"errors"
	"fmt"
	"time"

	gochirp "github.com/karoldav/gochirp"
	log "github.com/sirupsen/logrus"
	bugst "go.bug.st/serial"
)

type port struct {
	inner   bugst.Port
	name    string
	cfg     gochirp.Config
	pending []byte
}

// Open a serial port with the given configuration.
func Open(name string, cfg gochirp.Config) (gochirp.Port, error) {
	mode, err := toMode(cfg)
	if err != nil {
		return nil, err
	}
	inner, err := bugst.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %v : %w", name, err)
	}
	log.Debugf("[SERIAL] opened %v at %v baud", name, cfg.Baud)
	return &port{inner: inner, name: name, cfg: cfg}, nil
}

// List returns the serial port names present on the system.
func List() ([]string, error) {
	return bugst.GetPortsList()
}

func toMode(cfg gochirp.Config) (*bugst.Mode, error) {
	if cfg.Flow == gochirp.FlowHardware {
		return nil, errors.New("hardware flow control is not supported by this backend")
	}
	mode := &bugst.Mode{BaudRate: cfg.Baud, DataBits: cfg.DataBits}
	switch cfg.Parity {
	case gochirp.ParityNone:
		mode.Parity = bugst.NoParity
	case gochirp.ParityEven:
		mode.Parity = bugst.EvenParity
	case gochirp.ParityOdd:
		mode.Parity = bugst.OddParity
	default:
		return nil, fmt.Errorf("unknown parity : %v", cfg.Parity)
	}
	switch cfg.StopBits {
	case 1:
		mode.StopBits = bugst.OneStopBit
	case 2:
		mode.StopBits = bugst.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits : %v", cfg.StopBits)
	}
	switch cfg.DataBits {
	case 5, 6, 7, 8:
	default:
		return nil, fmt.Errorf("unsupported data bits : %v", cfg.DataBits)
	}
	return mode, nil
}

func (p *port) ReadExact(n int) ([]byte, error) {
	deadline := time.Now().Add(p.cfg.Timeout)
	for len(p.pending) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w : wanted %v bytes, have %v",
				gochirp.ErrTimeout, n, len(p.pending))
		}
		if err := p.inner.SetReadTimeout(remaining); err != nil {
			return nil, err
		}
		chunk := make([]byte, n-len(p.pending))
		read, err := p.inner.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("read %v : %w", p.name, err)
		}
		p.pending = append(p.pending, chunk[:read]...)
	}
	b := p.pending[:n]
	p.pending = p.pending[n:]
	return b, nil
}

func (p *port) ReadUntil(delim byte, max int) ([]byte, error) {
	var out []byte
	for len(out) < max {
		b, err := p.ReadExact(1)
		if err != nil {
			return out, err
		}
		out = append(out, b[0])
		if b[0] == delim {
			return out, nil
		}
	}
	return out, nil
}

func (p *port) WriteAll(b []byte) error {
	written := 0
	for written < len(b) {
		n, err := p.inner.Write(b[written:])
		if err != nil {
			return fmt.Errorf("write %v : %w", p.name, err)
		}
		written += n
	}
	return nil
}

func (p *port) Flush() error {
	return p.inner.Drain()
}

func (p *port) ClearInput() error {
	p.pending = nil
	return p.inner.ResetInputBuffer()
}

func (p *port) ClearOutput() error {
	return p.inner.ResetOutputBuffer()
}

func (p *port) BytesAvailable() (int, error) {
	// Poll briefly so bytes sitting in the OS buffer become visible
	if err := p.inner.SetReadTimeout(time.Millisecond); err != nil {
		return 0, err
	}
	chunk := make([]byte, 256)
	n, err := p.inner.Read(chunk)
	if err != nil {
		return 0, err
	}
	p.pending = append(p.pending, chunk[:n]...)
	return len(p.pending), nil
}

func (p *port) SetDTR(value bool) error {
	return p.inner.SetDTR(value)
}

func (p *port) SetRTS(value bool) error {
	return p.inner.SetRTS(value)
}

func (p *port) SetBaud(rate int) error {
	if err := p.Flush(); err != nil {
		return err
	}
	cfg := p.cfg
	cfg.Baud = rate
	mode, err := toMode(cfg)
	if err != nil {
		return err
	}
	if err := p.inner.SetMode(mode); err != nil {
		return fmt.Errorf("set baud %v : %w", rate, err)
	}
	p.cfg = cfg
	log.Debugf("[SERIAL] %v now at %v baud", p.name, rate)
	return nil
}

func (p *port) Close() error {
	return p.inner.Close()
}
