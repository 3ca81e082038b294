package types

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestBlockLenMatchesShift(t *testing.T) {
	assertT := assert.New(t)

	var b BlockBytes
	assertT.EqualValues(BlockLen, unsafe.Sizeof(b))
	assertT.EqualValues(0, BlockLen&BlockMask)
	// Packing needs at least one whole packed byte per block at every pixel shift.
	assertT.Zero(BlockLen % (1 << MaxPixelShift))
}

func TestBlockOffset(t *testing.T) {
	assertT := assert.New(t)

	assertT.EqualValues(0, BlockOffset(0))
	assertT.EqualValues(0, BlockOffset(BlockLen-1))
	assertT.EqualValues(BlockLen, BlockOffset(BlockLen))
	assertT.EqualValues(2*BlockLen, BlockOffset(2*BlockLen+100))
}

func TestRoundUp(t *testing.T) {
	assertT := assert.New(t)

	assertT.EqualValues(0, RoundUp(0))
	assertT.EqualValues(BlockLen, RoundUp(1))
	assertT.EqualValues(BlockLen, RoundUp(BlockLen))
	assertT.EqualValues(3*BlockLen, RoundUp(5000))

	assertT.EqualValues(0, BlocksFor(0))
	assertT.EqualValues(1, BlocksFor(BlockLen))
	assertT.EqualValues(3, BlocksFor(5000))
}
