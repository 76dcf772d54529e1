// Clone mode driver for the Baofeng UV-5R family.
package baofeng

import (
	"fmt"
	"time"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/pkg/channel"
	"github.com/karoldav/gochirp/pkg/radio"
	log "github.com/sirupsen/logrus"
)

const (
	// Radio address space, without the file header
	radioSize = 0x1800
	// File envelope image : 8 byte ident header + radio data.
	// Every file offset is radio address + headerSize.
	fileSize   = 0x1808
	headerSize = 8

	channelCount  = 128
	recordSize    = 16
	nameSize      = 7
	namesBase     = 0x1000
	downloadBlock = 64
	uploadBlock   = 16

	ack      = 0x06
	identEnd = 0xDD
	cmdIdent = 0x02
	cmdRead  = 'S'
	cmdWrite = 'X'

	// Pause between the bytes of a handshake magic
	interByteDelay = 10 * time.Millisecond
)

// Programming mode magics. Newer firmware only answers the second
// sequence, the driver tries both.
var (
	magicA = []byte{0x50, 0xBB, 0xFF, 0x20, 0x12, 0x07, 0x25}
	magicB = []byte{0x50, 0xBB, 0xFF, 0x01, 0x25, 0x98, 0x4D}
)

// Calibration regions that download normally but must never be
// written back, in radio addresses.
var skipRanges = [][2]int{
	{0x0CF8, 0x0D08},
	{0x0DF8, 0x0E08},
}

type Driver struct{}

func New() *Driver { return &Driver{} }

func (d *Driver) Descriptor() radio.Descriptor {
	return radio.Descriptor{
		Vendor:       "Baofeng",
		Model:        "UV-5R",
		ImageSize:    fileSize,
		Channels:     channelCount,
		ChannelWidth: recordSize,
		NameLength:   nameSize,
		Modes:        []channel.Mode{channel.ModeFM, channel.ModeNFM},
		PowerLevels: []radio.PowerLevel{
			{Name: "High", Watts: 4},
			{Name: "Low", Watts: 1},
		},
		HasVariablePower: true,
		HasBanks:         false,
	}
}

func (d *Driver) PortConfig() gochirp.Config {
	return gochirp.Config{
		Baud:     9600,
		DataBits: 8,
		Parity:   gochirp.ParityNone,
		StopBits: 1,
		Flow:     gochirp.FlowNone,
		Timeout:  time.Second,
	}
}

// handshake enters programming mode and returns the 8 byte ident
// header. The second magic variant is tried when the first stays
// unanswered.
func (d *Driver) handshake(port gochirp.Port) ([]byte, error) {
	// The cable leaves DTR/RTS unconnected, both are held low
	if err := port.SetDTR(false); err != nil {
		return nil, err
	}
	if err := port.SetRTS(false); err != nil {
		return nil, err
	}
	variants := [][]byte{magicA, magicB}
	for variant, magic := range variants {
		if err := port.ClearInput(); err != nil {
			return nil, err
		}
		for _, by := range magic {
			if err := port.WriteAll([]byte{by}); err != nil {
				return nil, err
			}
			time.Sleep(interByteDelay)
		}
		b, err := port.ReadExact(1)
		if err != nil || b[0] != ack {
			log.Warnf("[UV5R] no answer to magic variant %v", variant+1)
			if variant == len(variants)-1 {
				return nil, fmt.Errorf("%w : tried %v magic variants",
					gochirp.ErrHandshakeFailed, len(variants))
			}
			continue
		}
		return d.readIdent(port)
	}
	return nil, gochirp.ErrHandshakeFailed
}

func (d *Driver) readIdent(port gochirp.Port) ([]byte, error) {
	if err := port.WriteAll([]byte{cmdIdent}); err != nil {
		return nil, err
	}
	frame, err := port.ReadUntil(identEnd, 12)
	if err != nil {
		return nil, fmt.Errorf("ident frame : %w", err)
	}
	if frame[len(frame)-1] != identEnd {
		return nil, &gochirp.ProtocolError{Op: "ident terminator", Want: []byte{identEnd}, Got: frame}
	}
	payload := frame[:len(frame)-1]
	if len(payload) < headerSize {
		return nil, &gochirp.ProtocolError{Op: "ident length", Want: []byte{headerSize}, Got: []byte{byte(len(payload))}}
	}
	if err := port.WriteAll([]byte{ack}); err != nil {
		return nil, err
	}
	b, err := port.ReadExact(1)
	if err != nil {
		return nil, fmt.Errorf("final handshake ack : %w", err)
	}
	if b[0] != ack {
		return nil, &gochirp.ProtocolError{Op: "final handshake ack", Want: []byte{ack}, Got: b}
	}
	log.Infof("[UV5R] programming session open, ident % X", payload[:headerSize])
	return payload[:headerSize], nil
}
