// Clone mode driver for the Kenwood TH-D74 family.
package kenwood

import (
	"context"
	"fmt"
	"time"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/internal/binfmt"
	"github.com/karoldav/gochirp/pkg/block"
	"github.com/karoldav/gochirp/pkg/channel"
	"github.com/karoldav/gochirp/pkg/image"
	"github.com/karoldav/gochirp/pkg/radio"
	log "github.com/sirupsen/logrus"
)

const (
	imageSize    = 0x7A300
	channelCount = 1200
	recordSize   = 40
	nameSize     = 16

	flagsBase   = 0x2000
	flagSize    = 4
	recordsBase = 0x4000
	namesBase   = 0x10000

	// Channels sit in groups of six 40 byte records with 16 bytes of
	// padding between groups
	groupSize   = 6
	groupStride = groupSize*recordSize + 16

	baudInitial = 9600
	baudFast    = 57600
	blockSize   = 256

	ackProgram = 0x16
	ack        = 0x06
	cmdBaud    = 'B'
	cmdRead    = 'R'
	cmdWrite   = 'W'
	cmdEnd     = 'E'
)

// Printable command that switches the radio into clone mode
var cmdProgram = []byte("0M PROGRAM\r")

type Driver struct{}

func New() *Driver { return &Driver{} }

func (d *Driver) Descriptor() radio.Descriptor {
	return radio.Descriptor{
		Vendor:       "Kenwood",
		Model:        "TH-D74",
		ImageSize:    imageSize,
		Channels:     channelCount,
		ChannelWidth: recordSize,
		NameLength:   nameSize,
		Modes: []channel.Mode{
			channel.ModeFM, channel.ModeNFM, channel.ModeAM, channel.ModeDV,
		},
		PowerLevels:      []radio.PowerLevel{{Name: "High", Watts: 5}},
		HasVariablePower: false,
		HasBanks:         true,
		Banks:            10,
	}
}

func (d *Driver) PortConfig() gochirp.Config {
	return gochirp.Config{
		Baud:     baudInitial,
		DataBits: 8,
		Parity:   gochirp.ParityNone,
		StopBits: 1,
		Flow:     gochirp.FlowNone,
		Timeout:  time.Second,
	}
}

// RecordAddr returns the image address of channel n, accounting for
// the inter group padding.
func RecordAddr(n int) int {
	return recordsBase + n/groupSize*groupStride + n%groupSize*recordSize
}

func flagAddr(n int) int { return flagsBase + flagSize*n }
func nameAddr(n int) int { return namesBase + nameSize*n }

// handshake enters program mode and raises the line to 57600 baud.
// The returned restore func drops the session back to 9600 and must
// run on every exit path so radio and host agree on the next
// session's rate.
func (d *Driver) handshake(port gochirp.Port) (restore func(), err error) {
	if err := port.SetDTR(true); err != nil {
		return nil, err
	}
	if err := port.SetRTS(false); err != nil {
		return nil, err
	}
	if err := port.ClearInput(); err != nil {
		return nil, err
	}
	if err := port.WriteAll(cmdProgram); err != nil {
		return nil, err
	}
	b, err := port.ReadExact(1)
	if err != nil || b[0] != ackProgram {
		return nil, fmt.Errorf("%w : radio did not enter program mode", gochirp.ErrHandshakeFailed)
	}
	if err := port.WriteAll([]byte{cmdBaud}); err != nil {
		return nil, err
	}
	b, err = port.ReadExact(1)
	if err != nil {
		return nil, fmt.Errorf("baud switch : %w", err)
	}
	if b[0] != ack {
		return nil, &gochirp.ProtocolError{Op: "baud switch ack", Want: []byte{ack}, Got: b}
	}
	if err := port.SetBaud(baudFast); err != nil {
		return nil, err
	}
	log.Infof("[THD74] program mode at %v baud", baudFast)
	restore = func() {
		// Best effort : the radio drops out of program mode on its
		// own after a few seconds if this never arrives
		if err := port.WriteAll([]byte{cmdEnd}); err != nil {
			log.Warnf("[THD74] end of session write failed : %v", err)
		}
		if err := port.SetBaud(baudInitial); err != nil {
			log.Warnf("[THD74] baud restore failed : %v", err)
		}
	}
	return restore, nil
}

func (d *Driver) Download(ctx context.Context, port gochirp.Port, progress gochirp.ProgressFunc) (*image.Image, error) {
	restore, err := d.handshake(port)
	if err != nil {
		return nil, err
	}
	defer restore()
	walker := block.Walker{BlockSize: blockSize, TotalSize: imageSize}
	data, err := walker.Download(func(index, addr, size int) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, gochirp.ErrCancelled
		}
		return d.readBlock(port, index, size)
	}, progress)
	if err != nil {
		return nil, err
	}
	log.Infof("[THD74] downloaded x%X bytes", len(data))
	return image.FromBytes(data, string(radio.IDKenwoodTHD74)), nil
}

func (d *Driver) readBlock(port gochirp.Port, seq, size int) ([]byte, error) {
	req := make([]byte, 3)
	req[0] = cmdRead
	binfmt.PutU16(req[1:3], uint16(seq), false)
	if err := port.ClearInput(); err != nil {
		return nil, err
	}
	if err := port.WriteAll(req); err != nil {
		return nil, err
	}
	hdr, err := port.ReadExact(3)
	if err != nil {
		return nil, err
	}
	if hdr[0] != cmdWrite || binfmt.U16(hdr[1:3], false) != uint16(seq) {
		return nil, &gochirp.ProtocolError{
			Op:   fmt.Sprintf("read block %v header", seq),
			Want: []byte{cmdWrite, req[1], req[2]},
			Got:  hdr,
		}
	}
	data, err := port.ReadExact(size)
	if err != nil {
		return nil, err
	}
	if err := port.WriteAll([]byte{ack}); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Driver) Upload(ctx context.Context, port gochirp.Port, img *image.Image, progress gochirp.ProgressFunc) error {
	if img.Len() != imageSize {
		return fmt.Errorf("%w : image is x%X bytes, want x%X", gochirp.ErrOutOfRange, img.Len(), imageSize)
	}
	restore, err := d.handshake(port)
	if err != nil {
		return err
	}
	defer restore()
	walker := block.Walker{BlockSize: blockSize, TotalSize: imageSize}
	return walker.Upload(img.Bytes(), func(index, addr int, chunk []byte) error {
		if err := ctx.Err(); err != nil {
			return gochirp.ErrCancelled
		}
		return d.writeBlock(port, index, chunk)
	}, progress)
}

// writeBlock sends one block and waits for its ack. A missed ack is
// retried once, a second miss is fatal.
func (d *Driver) writeBlock(port gochirp.Port, seq int, chunk []byte) error {
	frame := make([]byte, 0, 3+len(chunk))
	frame = append(frame, cmdWrite, byte(seq>>8), byte(seq))
	frame = append(frame, chunk...)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			log.Warnf("[THD74] block %v not acked, retrying", seq)
		}
		if err := port.WriteAll(frame); err != nil {
			return err
		}
		b, err := port.ReadExact(1)
		if err == nil && b[0] == ack {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = &gochirp.ProtocolError{Op: fmt.Sprintf("write block %v ack", seq), Want: []byte{ack}, Got: b}
		}
	}
	return lastErr
}
