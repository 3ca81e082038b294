package types

const (
	// BlockShift is log2 of BlockLen.
	BlockShift = 11

	// BlockLen is the size of the data unit exchanged between the cache and the backing store.
	BlockLen int64 = 1 << BlockShift

	// BlockMask selects the position inside a block.
	BlockMask = BlockLen - 1

	// MaxPixelShift is the pixel shift of 1-bit-per-pixel media.
	MaxPixelShift = 3
)

// BlockBytes represents the raw bytes of one block.
type BlockBytes [BlockLen]byte

// BlockOffset returns the block-aligned offset containing the virtual offset.
func BlockOffset(offset int64) int64 {
	return offset &^ BlockMask
}

// RoundUp rounds size up to the nearest multiple of BlockLen.
func RoundUp(size int64) int64 {
	return (size + BlockMask) &^ BlockMask
}

// BlocksFor returns the number of blocks needed to store size bytes.
func BlocksFor(size int64) int64 {
	return RoundUp(size) >> BlockShift
}
