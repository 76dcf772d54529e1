// Bit range helpers for the packed channel records.
// Every historical bug in the codecs has been a field at the wrong bit
// position, so most extraction and insertion goes through here.
package bitfield

import "fmt"

func mask(low, width uint) byte {
	return byte((1<<width - 1) << low)
}

// Extract returns the width bits starting at low (inclusive),
// right aligned.
func Extract(b byte, low, width uint) byte {
	if low+width > 8 {
		panic(fmt.Sprintf("bit range [%v:%v] exceeds a byte", low, low+width))
	}
	return (b >> low) & (1<<width - 1)
}

// Insert places value into the width bits starting at low. The
// destination bits must be zero, which keeps field writes explicit
// about what they clear.
func Insert(b byte, low, width uint, value byte) byte {
	if low+width > 8 {
		panic(fmt.Sprintf("bit range [%v:%v] exceeds a byte", low, low+width))
	}
	if value > 1<<width-1 {
		panic(fmt.Sprintf("value x%X does not fit in %v bits", value, width))
	}
	if b&mask(low, width) != 0 {
		panic(fmt.Sprintf("destination bits [%v:%v] of x%02X not clear", low, low+width, b))
	}
	return b | value<<low
}

// Set reports whether bit n is set.
func Set(b byte, n uint) bool {
	return Extract(b, n, 1) == 1
}
