package binfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestU16(t *testing.T) {
	b := []byte{0x34, 0x12}
	assert.EqualValues(t, 0x1234, U16(b, true))
	assert.EqualValues(t, 0x3412, U16(b, false))
}

func TestU24(t *testing.T) {
	b := []byte{0x56, 0x34, 0x12}
	assert.EqualValues(t, 0x123456, U24(b, true))
	assert.EqualValues(t, 0x563412, U24(b, false))
}

func TestU32PutU32(t *testing.T) {
	b := make([]byte, 4)
	PutU32(b, 144390000, true)
	assert.Equal(t, []byte{0x70, 0x37, 0x9B, 0x08}, b)
	assert.EqualValues(t, 144390000, U32(b, true))
	PutU32(b, 144390000, false)
	assert.EqualValues(t, 144390000, U32(b, false))
}

func TestSignExtension(t *testing.T) {
	b := make([]byte, 3)
	PutI24(b, -2, true)
	assert.EqualValues(t, -2, I24(b, true))
	PutI24(b, -2, false)
	assert.EqualValues(t, -2, I24(b, false))
	assert.EqualValues(t, -1, I8([]byte{0xFF}))
	assert.EqualValues(t, -1, I16([]byte{0xFF, 0xFF}, true))
	assert.EqualValues(t, -1, I32([]byte{0xFF, 0xFF, 0xFF, 0xFF}, true))
}
