package cache

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/diskvideo/types"
)

const (
	// WriteGap is the number of clean or absent blocks the flush skips over while looking for dirty neighbours.
	WriteGap = 4

	// noEntry terminates hash chains.
	noEntry = -1

	// noOffset marks trackers which do not refer to any block.
	noOffset = -1
)

// EntrySize is the memory taken by one cache entry.
var EntrySize = int64(unsafe.Sizeof(entry{}))

// ErrOutOfBounds is returned when bulk transfer crosses block boundary or leaves the image.
var ErrOutOfBounds = errors.New("access out of bounds")

// entry caches one block of unpacked pixels.
type entry struct {
	offset       int64
	hashLink     int
	valid        bool
	dirty        bool
	recentlyUsed bool
	pixels       types.BlockBytes
}

// Geometry describes the virtual image.
type Geometry struct {
	RowStride    int64
	RowCount     int64
	HeaderLength int64
	PixelShift   uint8
}

// PixelShiftFor returns pixel shift used to store the number of colors. Shift 3 packs 8 pixels into a byte,
// shift 0 stores one pixel per byte.
func PixelShiftFor(colors int) uint8 {
	shift := uint8(types.MaxPixelShift)
	for i := 2; i < colors && shift > 0; i *= i {
		shift--
	}
	return shift
}

// NewGeometry validates and returns geometry.
func NewGeometry(rowStride, rowCount, headerLength int64, pixelShift uint8) (Geometry, error) {
	if rowStride <= 0 || rowCount <= 0 {
		return Geometry{}, errors.Errorf("invalid image size %dx%d", rowStride, rowCount)
	}
	if headerLength < 0 || headerLength > types.BlockLen {
		return Geometry{}, errors.Errorf("invalid header length %d, maximum is %d", headerLength, types.BlockLen)
	}
	if pixelShift > types.MaxPixelShift {
		return Geometry{}, errors.Errorf("invalid pixel shift %d", pixelShift)
	}
	return Geometry{
		RowStride:    rowStride,
		RowCount:     rowCount,
		HeaderLength: headerLength,
		PixelShift:   pixelShift,
	}, nil
}

// Pixels returns the number of pixels in the image.
func (g Geometry) Pixels() int64 {
	return g.RowStride * g.RowCount
}

// Limit returns the end of the addressable virtual space.
func (g Geometry) Limit() int64 {
	return types.RoundUp(g.Pixels())
}

// StoreBlocks returns the number of backing store blocks needed for packed pixels and the header.
func (g Geometry) StoreBlocks() int64 {
	return types.BlocksFor(g.Limit()>>g.PixelShift + g.HeaderLength)
}

// EntriesFor returns the number of entries fitting into the memory budget.
func EntriesFor(budget int64) int {
	return int(budget / EntrySize)
}

// Stats reports cache activity.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Loads     uint64
	ZeroFills uint64
	Flushed   uint64
	Seeks     uint64
}
