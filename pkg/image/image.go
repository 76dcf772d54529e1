// Byte addressable container for a radio's full memory image.
// The image is mostly opaque to this project : only the channel
// regions are interpreted, everything else is carried byte exact so
// that an upload never corrupts global settings.
package image

import (
	"fmt"
	"strings"

	gochirp "github.com/karoldav/gochirp"
)

type Image struct {
	data []byte
	// Which radio produced this image, e.g. "uv5r"
	origin string
}

// Create a new image of the given size, filled with 0xFF like factory
// erased flash.
func New(size int, origin string) *Image {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &Image{data: data, origin: origin}
}

// Wrap an existing byte slice. The image takes ownership of it.
func FromBytes(data []byte, origin string) *Image {
	return &Image{data: data, origin: origin}
}

func (img *Image) Len() int {
	return len(img.data)
}

func (img *Image) Origin() string {
	return img.origin
}

// Get returns a borrowed slice of the image. The slice aliases the
// image, writes through it mutate the image.
func (img *Image) Get(addr int, n int) ([]byte, error) {
	if err := img.check(addr, n); err != nil {
		return nil, err
	}
	return img.data[addr : addr+n], nil
}

// Put overwrites len(b) bytes starting at addr.
func (img *Image) Put(addr int, b []byte) error {
	if err := img.check(addr, len(b)); err != nil {
		return err
	}
	copy(img.data[addr:], b)
	return nil
}

// Bytes returns the whole underlying buffer, borrowed.
func (img *Image) Bytes() []byte {
	return img.data
}

// Clone returns a deep copy, used by tests to compare pre and post
// edit state.
func (img *Image) Clone() *Image {
	data := make([]byte, len(img.data))
	copy(data, img.data)
	return &Image{data: data, origin: img.origin}
}

func (img *Image) check(addr int, n int) error {
	if addr < 0 || n < 0 || addr+n > len(img.data) {
		return fmt.Errorf("%w : [x%X:x%X] of x%X byte image",
			gochirp.ErrOutOfRange, addr, addr+n, len(img.data))
	}
	return nil
}

// HexDump renders n bytes starting at addr in the usual 16 byte per
// row offset/hex/ascii format.
func (img *Image) HexDump(addr int, n int) (string, error) {
	b, err := img.Get(addr, n)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for row := 0; row < len(b); row += 16 {
		end := row + 16
		if end > len(b) {
			end = len(b)
		}
		fmt.Fprintf(&sb, "%08X  ", addr+row)
		for i := row; i < row+16; i++ {
			if i < end {
				fmt.Fprintf(&sb, "%02X ", b[i])
			} else {
				sb.WriteString("   ")
			}
			if i == row+7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(" |")
		for i := row; i < end; i++ {
			if b[i] >= 0x20 && b[i] < 0x7F {
				sb.WriteByte(b[i])
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String(), nil
}
