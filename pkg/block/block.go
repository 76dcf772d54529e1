// Generic block by block transfer loop shared by the radio drivers.
package block

import (
	"errors"
	"fmt"

	gochirp "github.com/karoldav/gochirp"
	log "github.com/sirupsen/logrus"
)

// Walker iterates a memory region of TotalSize bytes in BlockSize
// steps. The wire format of each request stays with the driver.
type Walker struct {
	BlockSize int
	TotalSize int
}

// Blocks returns the number of blocks covering TotalSize, the last
// one possibly partial.
func (w Walker) Blocks() int {
	return (w.TotalSize + w.BlockSize - 1) / w.BlockSize
}

// Download assembles the full region by calling fetch once per block.
// A fetch that times out is retried once before the error surfaces.
func (w Walker) Download(fetch func(index int, addr int, size int) ([]byte, error), progress gochirp.ProgressFunc) ([]byte, error) {
	out := make([]byte, 0, w.TotalSize)
	total := w.Blocks()
	for index := 0; index < total; index++ {
		addr := index * w.BlockSize
		size := w.BlockSize
		if addr+size > w.TotalSize {
			size = w.TotalSize - addr
		}
		data, err := fetch(index, addr, size)
		if errors.Is(err, gochirp.ErrTimeout) {
			log.Warnf("[BLOCK] read of block %v timed out, retrying", index)
			data, err = fetch(index, addr, size)
		}
		if err != nil {
			return nil, fmt.Errorf("block %v at x%X : %w", index, addr, err)
		}
		if len(data) != size {
			return nil, &gochirp.ProtocolError{
				Op:   fmt.Sprintf("block %v length", index),
				Want: []byte{byte(size)},
				Got:  []byte{byte(len(data))},
			}
		}
		out = append(out, data...)
		if progress != nil {
			progress(index+1, total, fmt.Sprintf("Reading block %v/%v", index+1, total))
		}
	}
	return out, nil
}

// Upload streams data out by calling send once per block.
func (w Walker) Upload(data []byte, send func(index int, addr int, chunk []byte) error, progress gochirp.ProgressFunc) error {
	if len(data) != w.TotalSize {
		return fmt.Errorf("%w : upload of %v bytes into x%X byte region",
			gochirp.ErrOutOfRange, len(data), w.TotalSize)
	}
	total := w.Blocks()
	for index := 0; index < total; index++ {
		addr := index * w.BlockSize
		end := addr + w.BlockSize
		if end > w.TotalSize {
			end = w.TotalSize
		}
		if err := send(index, addr, data[addr:end]); err != nil {
			return fmt.Errorf("block %v at x%X : %w", index, addr, err)
		}
		if progress != nil {
			progress(index+1, total, fmt.Sprintf("Writing block %v/%v", index+1, total))
		}
	}
	return nil
}

// DownloadSimple writes initCmd once, then reads BlockSize bytes per
// block with no per block request. Some radios stream their whole
// image this way.
func (w Walker) DownloadSimple(port gochirp.Port, initCmd []byte, progress gochirp.ProgressFunc) ([]byte, error) {
	if err := port.WriteAll(initCmd); err != nil {
		return nil, err
	}
	return w.Download(func(index, addr, size int) ([]byte, error) {
		return port.ReadExact(size)
	}, progress)
}
