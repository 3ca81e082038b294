package staging

import (
	"github.com/pkg/errors"

	"github.com/outofforest/diskvideo/types"
)

// noBlock marks the buffer as not mirroring any block.
const noBlock = -1

// Store is the block store mirrored by the buffer.
type Store interface {
	ReadBlock(index int64, p []byte) error
	WriteBlock(index int64, p []byte) error
}

// Stats counts block swaps done by the buffer.
type Stats struct {
	Fetches uint64
	Flushes uint64
}

// Buffer mirrors one block of the store and converts the byte stream view of the packed image
// into block transfers. Header bytes occupy the first headerLength bytes of the store, packed
// offsets start right after them.
//
// A sequence of GetByte calls is never interleaved with PutByte calls without a Seek in between.
type Buffer struct {
	store        Store
	headerLength int64
	block        []byte
	mirrored     int64
	cursor       int64
	stats        Stats
}

// New returns new staging buffer.
func New(store Store, headerLength int64) (*Buffer, error) {
	if headerLength < 0 || headerLength > types.BlockLen {
		return nil, errors.Errorf("invalid header length %d, maximum is %d", headerLength, types.BlockLen)
	}
	return &Buffer{
		store:        store,
		headerLength: headerLength,
		block:        make([]byte, types.BlockLen),
		mirrored:     noBlock,
		cursor:       types.BlockLen,
	}, nil
}

// HeaderLength returns the number of header bytes preceding the packed image.
func (b *Buffer) HeaderLength() int64 {
	return b.headerLength
}

// Stats returns swap counters.
func (b *Buffer) Stats() Stats {
	return b.stats
}

// Seek moves the cursor to the packed offset, swapping the mirrored block if needed.
func (b *Buffer) Seek(packedOffset int64) error {
	if packedOffset < 0 {
		return errors.Errorf("invalid packed offset: %d", packedOffset)
	}
	return b.seekPosition(packedOffset + b.headerLength)
}

// GetByte returns the byte under the cursor and advances it.
func (b *Buffer) GetByte() (byte, error) {
	if b.cursor >= types.BlockLen {
		if err := b.advance(); err != nil {
			return 0, err
		}
	}
	v := b.block[b.cursor]
	b.cursor++
	return v, nil
}

// PutByte stores the byte under the cursor and advances it.
func (b *Buffer) PutByte(v byte) error {
	if b.cursor >= types.BlockLen {
		if err := b.advance(); err != nil {
			return err
		}
	}
	b.block[b.cursor] = v
	b.cursor++
	return nil
}

// Flush writes the mirrored block back to the store.
func (b *Buffer) Flush() error {
	if b.mirrored == noBlock {
		return nil
	}
	b.stats.Flushes++
	return b.store.WriteBlock(b.mirrored, b.block)
}

// WriteHeader stores header bytes at the beginning of the store.
func (b *Buffer) WriteHeader(header []byte) error {
	if int64(len(header)) != b.headerLength {
		return errors.Errorf("invalid header size %d, expected %d", len(header), b.headerLength)
	}
	if err := b.seekPosition(0); err != nil {
		return err
	}
	copy(b.block, header)
	b.cursor = b.headerLength
	return b.Flush()
}

// ReadHeader reads header bytes from the beginning of the store.
func (b *Buffer) ReadHeader(p []byte) error {
	if int64(len(p)) != b.headerLength {
		return errors.Errorf("invalid header size %d, expected %d", len(p), b.headerLength)
	}
	if err := b.seekPosition(0); err != nil {
		return err
	}
	copy(p, b.block)
	b.cursor = b.headerLength
	return nil
}

func (b *Buffer) seekPosition(position int64) error {
	target := position >> types.BlockShift
	if target != b.mirrored {
		if err := b.swap(target); err != nil {
			return err
		}
	}
	b.cursor = position & types.BlockMask
	return nil
}

func (b *Buffer) advance() error {
	if err := b.swap(b.mirrored + 1); err != nil {
		return err
	}
	b.cursor = 0
	return nil
}

// swap writes the mirrored block back, whether it was modified or not, and fetches the target one.
func (b *Buffer) swap(target int64) error {
	if err := b.Flush(); err != nil {
		return err
	}
	b.mirrored = noBlock
	b.stats.Fetches++
	if err := b.store.ReadBlock(target, b.block); err != nil {
		b.cursor = types.BlockLen
		return err
	}
	b.mirrored = target
	return nil
}
