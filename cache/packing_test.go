package cache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/diskvideo/types"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	requireT := require.New(t)

	for shift := uint8(0); shift <= types.MaxPixelShift; shift++ {
		pixels := make([]byte, 1<<shift)
		for b := 0; b < 256; b++ {
			unpackByte(pixels, byte(b), shift)
			requireT.EqualValues(b, packByte(pixels, shift), "shift: %d", shift)
		}
	}
}

func TestUnpackPackBlock(t *testing.T) {
	requireT := require.New(t)

	for shift := uint8(0); shift <= types.MaxPixelShift; shift++ {
		mask := fieldMask(shift)
		block := make([]byte, types.BlockLen)
		for i := range block {
			block[i] = byte(i*7+3) & mask
		}

		step := 1 << shift
		packed := make([]byte, types.BlockLen>>shift)
		for i := range packed {
			packed[i] = packByte(block[i*step:], shift)
		}

		unpacked := make([]byte, types.BlockLen)
		for i, b := range packed {
			unpackByte(unpacked[i*step:], b, shift)
		}
		requireT.Empty(cmp.Diff(block, unpacked), "shift: %d", shift)
	}
}

func TestFieldsAreMostSignificantFirst(t *testing.T) {
	requireT := require.New(t)

	pixels := make([]byte, 8)

	unpackByte(pixels, 0xa5, 1)
	requireT.Equal([]byte{0x0a, 0x05}, pixels[:2])

	unpackByte(pixels, 0b11001001, 2)
	requireT.Equal([]byte{3, 0, 2, 1}, pixels[:4])

	unpackByte(pixels, 0b10110001, 3)
	requireT.Equal([]byte{1, 0, 1, 1, 0, 0, 0, 1}, pixels)

	requireT.EqualValues(0x5a, packByte([]byte{0x05, 0x0a}, 1))
}

func TestPackDropsBitsAboveFieldWidth(t *testing.T) {
	requireT := require.New(t)

	requireT.EqualValues(0b01000000, packByte([]byte{5, 0, 0, 0}, 2))
	requireT.EqualValues(0xf1, packByte([]byte{0xff, 0x11}, 1))
}
