// Fixed width integer accessors over raw record bytes.
package binfmt

import "encoding/binary"

func U8(b []byte) uint8 { return b[0] }

func U16(b []byte, littleEndian bool) uint16 {
	if littleEndian {
		return binary.LittleEndian.Uint16(b)
	}
	return binary.BigEndian.Uint16(b)
}

func U24(b []byte, littleEndian bool) uint32 {
	if littleEndian {
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func U32(b []byte, littleEndian bool) uint32 {
	if littleEndian {
		return binary.LittleEndian.Uint32(b)
	}
	return binary.BigEndian.Uint32(b)
}

func PutU8(b []byte, v uint8) { b[0] = v }

func PutU16(b []byte, v uint16, littleEndian bool) {
	if littleEndian {
		binary.LittleEndian.PutUint16(b, v)
	} else {
		binary.BigEndian.PutUint16(b, v)
	}
}

func PutU24(b []byte, v uint32, littleEndian bool) {
	if littleEndian {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	} else {
		b[0] = byte(v >> 16)
		b[1] = byte(v >> 8)
		b[2] = byte(v)
	}
}

func PutU32(b []byte, v uint32, littleEndian bool) {
	if littleEndian {
		binary.LittleEndian.PutUint32(b, v)
	} else {
		binary.BigEndian.PutUint32(b, v)
	}
}

// Signed variants sign extend from the stored width.

func I8(b []byte) int8 { return int8(b[0]) }

func I16(b []byte, littleEndian bool) int16 { return int16(U16(b, littleEndian)) }

func I24(b []byte, littleEndian bool) int32 {
	v := U24(b, littleEndian)
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

func I32(b []byte, littleEndian bool) int32 { return int32(U32(b, littleEndian)) }

func PutI8(b []byte, v int8) { b[0] = byte(v) }

func PutI16(b []byte, v int16, littleEndian bool) { PutU16(b, uint16(v), littleEndian) }

func PutI24(b []byte, v int32, littleEndian bool) { PutU24(b, uint32(v)&0xFFFFFF, littleEndian) }

func PutI32(b []byte, v int32, littleEndian bool) { PutU32(b, uint32(v), littleEndian) }
