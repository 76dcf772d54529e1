// Scripted serial port used by the driver test suites, playing the
// radio side of a clone session. An exchange pairs the bytes the
// driver is expected to write with the radio's canned answer. A nil
// answer models a radio that stays silent, which the driver sees as
// a timeout.
package serialtest

import (
	"bytes"
	"fmt"

	gochirp "github.com/karoldav/gochirp"
)

type Exchange struct {
	Expect  []byte
	Respond []byte
}

type Port struct {
	script  []Exchange
	step    int
	written []byte
	readBuf []byte

	// Observable side effects for assertions
	Baud        int
	BaudHistory []int
	Dtr         bool
	Rts         bool
	Closed      bool
	// All bytes the driver ever wrote, in order
	WriteLog []byte
}

func New(baud int, script []Exchange) *Port {
	return &Port{script: script, Baud: baud, BaudHistory: []int{baud}}
}

// Script appends further exchanges, useful when building long block
// loops programmatically.
func (p *Port) Script(e ...Exchange) {
	p.script = append(p.script, e...)
}

// Consumed reports how many scripted exchanges completed.
func (p *Port) Consumed() int {
	return p.step
}

// Push places bytes in the read queue without a matching write,
// modelling unsolicited radio output.
func (p *Port) Push(b []byte) {
	p.readBuf = append(p.readBuf, b...)
}

func (p *Port) match() {
	for p.step < len(p.script) {
		want := p.script[p.step].Expect
		if len(p.written) < len(want) {
			return
		}
		if !bytes.Equal(p.written[:len(want)], want) {
			// Wrong bytes never match, the driver runs into its
			// timeout just like with a confused radio
			return
		}
		p.written = p.written[len(want):]
		p.readBuf = append(p.readBuf, p.script[p.step].Respond...)
		p.step++
	}
}

func (p *Port) ReadExact(n int) ([]byte, error) {
	if p.Closed {
		return nil, fmt.Errorf("port closed")
	}
	if len(p.readBuf) < n {
		return nil, fmt.Errorf("%w : wanted %v bytes, have %v",
			gochirp.ErrTimeout, n, len(p.readBuf))
	}
	b := p.readBuf[:n]
	p.readBuf = p.readBuf[n:]
	return b, nil
}

func (p *Port) ReadUntil(delim byte, max int) ([]byte, error) {
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

func (p *Port) WriteAll(b []byte) error {
	if p.Closed {
		return fmt.Errorf("port closed")
	}
	p.written = append(p.written, b...)
	p.WriteLog = append(p.WriteLog, b...)
	p.match()
	return nil
}

func (p *Port) Flush() error { return nil }

func (p *Port) ClearInput() error {
	p.readBuf = nil
	// A real radio never sees our stale unmatched bytes either once
	// the driver starts a fresh attempt
	p.written = nil
	return nil
}

func (p *Port) ClearOutput() error { return nil }

func (p *Port) BytesAvailable() (int, error) { return len(p.readBuf), nil }

func (p *Port) SetDTR(value bool) error {
	p.Dtr = value
	return nil
}

func (p *Port) SetRTS(value bool) error {
	p.Rts = value
	return nil
}

func (p *Port) SetBaud(rate int) error {
	p.Baud = rate
	p.BaudHistory = append(p.BaudHistory, rate)
	return nil
}

func (p *Port) Close() error {
	p.Closed = true
	return nil
}
