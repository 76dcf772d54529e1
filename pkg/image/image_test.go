package image

import (
	"strings"
	"testing"

	gochirp "github.com/karoldav/gochirp"
	"github.com/stretchr/testify/assert"
)

func TestNewFillsWithErasedFlash(t *testing.T) {
	img := New(32, "uv5r")
	assert.Equal(t, 32, img.Len())
	assert.Equal(t, "uv5r", img.Origin())
	b, err := img.Get(0, 32)
	assert.Nil(t, err)
	for _, by := range b {
		assert.EqualValues(t, 0xFF, by)
	}
}

func TestGetPutBounds(t *testing.T) {
	img := New(16, "test")
	_, err := img.Get(8, 9)
	assert.ErrorIs(t, err, gochirp.ErrOutOfRange)
	_, err = img.Get(-1, 1)
	assert.ErrorIs(t, err, gochirp.ErrOutOfRange)
	err = img.Put(15, []byte{1, 2})
	assert.ErrorIs(t, err, gochirp.ErrOutOfRange)
	err = img.Put(14, []byte{1, 2})
	assert.Nil(t, err)
	b, err := img.Get(14, 2)
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2}, b)
}

func TestGetBorrows(t *testing.T) {
	img := New(4, "test")
	b, err := img.Get(0, 2)
	assert.Nil(t, err)
	b[0] = 0x42
	again, _ := img.Get(0, 1)
	assert.EqualValues(t, 0x42, again[0])
}

func TestClone(t *testing.T) {
	img := New(4, "test")
	clone := img.Clone()
	_ = img.Put(0, []byte{1})
	b, _ := clone.Get(0, 1)
	assert.EqualValues(t, 0xFF, b[0])
}

func TestHexDump(t *testing.T) {
	img := New(32, "test")
	_ = img.Put(0, []byte("CHIRP"))
	dump, err := img.HexDump(0, 17)
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(dump, "00000000  43 48 49 52 50"))
	assert.Contains(t, dump, "|CHIRP")
	assert.Equal(t, 2, strings.Count(dump, "\n"))
	_, err = img.HexDump(24, 16)
	assert.ErrorIs(t, err, gochirp.ErrOutOfRange)
}
