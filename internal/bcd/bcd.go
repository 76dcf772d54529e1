// Binary coded decimal helpers shared by the radio codecs.
// Every byte holds two decimal digits, the high nibble being the more
// significant one. Byte order is selectable ; the UV-5R codec stores
// its frequencies least significant byte first.
package bcd

import (
	"fmt"

	gochirp "github.com/karoldav/gochirp"
)

// Decode BCD bytes into an integer. With littleEndian set the least
// significant byte comes first. Any nibble above 9 fails with
// ErrInvalidBcd.
func ToUint(b []byte, littleEndian bool) (uint64, error) {
	var value uint64
	for i := range b {
		by := b[i]
		if littleEndian {
			by = b[len(b)-1-i]
		}
		hi := by >> 4
		lo := by & 0x0F
		if hi > 9 || lo > 9 {
			return 0, fmt.Errorf("%w : byte %v is x%02X", gochirp.ErrInvalidBcd, i, by)
		}
		value = value*100 + uint64(hi)*10 + uint64(lo)
	}
	return value, nil
}

// Encode an integer into nbytes of BCD. Fails when value needs more
// than 2*nbytes decimal digits.
func FromUint(value uint64, nbytes int, littleEndian bool) ([]byte, error) {
	b := make([]byte, nbytes)
	v := value
	for i := nbytes - 1; i >= 0; i-- {
		digits := byte(v % 10)
		v /= 10
		digits |= byte(v%10) << 4
		v /= 10
		if littleEndian {
			b[nbytes-1-i] = digits
		} else {
			b[i] = digits
		}
	}
	if v != 0 {
		return nil, fmt.Errorf("value %v does not fit in %v BCD bytes", value, nbytes)
	}
	return b, nil
}

// Valid reports whether all nibbles are decimal digits.
func Valid(b []byte) bool {
	for _, by := range b {
		if by>>4 > 9 || by&0x0F > 9 {
			return false
		}
	}
	return true
}
