package cache

// Packed byte holds 1<<shift pixels, most significant field first.

func fieldWidth(shift uint8) uint {
	return 8 >> shift
}

func fieldMask(shift uint8) byte {
	return byte(1<<fieldWidth(shift) - 1)
}

// unpackByte splits b into 1<<shift pixels stored in dst.
func unpackByte(dst []byte, b byte, shift uint8) {
	width := fieldWidth(shift)
	mask := fieldMask(shift)
	n := 1 << shift
	for i := 0; i < n; i++ {
		dst[i] = (b >> (8 - width*uint(i+1))) & mask
	}
}

// packByte joins 1<<shift pixels from src into one byte. Bits above field width are dropped.
func packByte(src []byte, shift uint8) byte {
	width := fieldWidth(shift)
	mask := fieldMask(shift)
	n := 1 << shift
	var b byte
	for i := 0; i < n; i++ {
		b = b<<width | src[i]&mask
	}
	return b
}
