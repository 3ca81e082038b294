package blockstore

import (
	"github.com/pkg/errors"
)

// Stats counts block transfers done through the handle.
type Stats struct {
	Reads  uint64
	Writes uint64
}

// Handle is the allocated block store.
type Handle struct {
	bio       BlockIO
	medium    Medium
	blockSize int64
	nBlocks   int64
	stats     Stats
}

// Medium returns the medium used to store blocks.
func (h *Handle) Medium() Medium {
	return h.medium
}

// BlockSize returns the size of each block.
func (h *Handle) BlockSize() int64 {
	return h.blockSize
}

// NBlocks returns the number of blocks.
func (h *Handle) NBlocks() int64 {
	return h.nBlocks
}

// Stats returns transfer counters.
func (h *Handle) Stats() Stats {
	return h.stats
}

// ReadBlock reads one block into p.
func (h *Handle) ReadBlock(index int64, p []byte) error {
	if h.bio == nil {
		return errors.New("block store has been released")
	}
	h.stats.Reads++
	return h.bio.ReadBlock(index, p)
}

// WriteBlock writes p into one block.
func (h *Handle) WriteBlock(index int64, p []byte) error {
	if h.bio == nil {
		return errors.New("block store has been released")
	}
	h.stats.Writes++
	return h.bio.WriteBlock(index, p)
}

// Release frees all the resources, temporary files included. Releasing twice is a no-op.
func (h *Handle) Release() error {
	if h.bio == nil {
		return nil
	}
	bio := h.bio
	h.bio = nil
	return bio.Close()
}
