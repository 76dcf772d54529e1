package baofeng

import (
	"context"
	"fmt"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/internal/binfmt"
	"github.com/karoldav/gochirp/pkg/block"
	"github.com/karoldav/gochirp/pkg/image"
	"github.com/karoldav/gochirp/pkg/radio"
	log "github.com/sirupsen/logrus"
)

// Download reads the full radio address space and returns the file
// layout image, ident header first.
func (d *Driver) Download(ctx context.Context, port gochirp.Port, progress gochirp.ProgressFunc) (*image.Image, error) {
	ident, err := d.handshake(port)
	if err != nil {
		return nil, err
	}
	walker := block.Walker{BlockSize: downloadBlock, TotalSize: radioSize}
	data, err := walker.Download(func(index, addr, size int) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, gochirp.ErrCancelled
		}
		return d.readBlock(port, addr, size)
	}, progress)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, fileSize)
	out = append(out, ident...)
	out = append(out, data...)
	log.Infof("[UV5R] downloaded x%X bytes", len(data))
	return image.FromBytes(out, string(radio.IDBaofengUV5R)), nil
}

func (d *Driver) readBlock(port gochirp.Port, addr, size int) ([]byte, error) {
	req := make([]byte, 4)
	req[0] = cmdRead
	binfmt.PutU16(req[1:3], uint16(addr), false)
	req[3] = byte(size)
	if err := port.ClearInput(); err != nil {
		return nil, err
	}
	if err := port.WriteAll(req); err != nil {
		return nil, err
	}
	hdr, err := port.ReadExact(4)
	if err != nil {
		return nil, err
	}
	want := []byte{cmdWrite, req[1], req[2], req[3]}
	if hdr[0] != cmdWrite || hdr[1] != req[1] || hdr[2] != req[2] || hdr[3] != req[3] {
		return nil, &gochirp.ProtocolError{Op: fmt.Sprintf("read block x%04X header", addr), Want: want, Got: hdr}
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

// Upload writes the image back in 16 byte blocks over the file
// envelope address range, skipping the calibration regions.
func (d *Driver) Upload(ctx context.Context, port gochirp.Port, img *image.Image, progress gochirp.ProgressFunc) error {
	if img.Len() != fileSize {
		return fmt.Errorf("%w : image is x%X bytes, want x%X", gochirp.ErrOutOfRange, img.Len(), fileSize)
	}
	if _, err := d.handshake(port); err != nil {
		return err
	}
	data, err := img.Get(headerSize, radioSize)
	if err != nil {
		return err
	}
	walker := block.Walker{BlockSize: uploadBlock, TotalSize: radioSize}
	return walker.Upload(data, func(index, addr int, chunk []byte) error {
		if err := ctx.Err(); err != nil {
			return gochirp.ErrCancelled
		}
		if inSkipRange(addr, len(chunk)) {
			log.Debugf("[UV5R] skipping calibration block x%04X", addr)
			return nil
		}
		return d.writeBlock(port, addr, chunk)
	}, progress)
}

func (d *Driver) writeBlock(port gochirp.Port, addr int, chunk []byte) error {
	frame := make([]byte, 0, 4+len(chunk))
	frame = append(frame, cmdWrite)
	frame = append(frame, byte(addr>>8), byte(addr))
	frame = append(frame, byte(len(chunk)))
	frame = append(frame, chunk...)
	if err := port.WriteAll(frame); err != nil {
		return err
	}
	b, err := port.ReadExact(1)
	if err != nil {
		return err
	}
	if b[0] != ack {
		return &gochirp.ProtocolError{Op: fmt.Sprintf("write block x%04X ack", addr), Want: []byte{ack}, Got: b}
	}
	return nil
}

// inSkipRange reports whether a write of n bytes at a radio address
// would touch a calibration region.
func inSkipRange(addr, n int) bool {
	for _, r := range skipRanges {
		if addr < r[1] && addr+n > r[0] {
			return true
		}
	}
	return false
}
