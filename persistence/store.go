package persistence

import (
	"io"

	"github.com/pkg/errors"
)

// Dev is the interface required from the device.
type Dev interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Size() int64
}

// ErrStoreIO is returned when the device transfers fewer bytes than requested.
var ErrStoreIO = errors.New("backing store I/O failure")

// Store addresses the device in blocks of equal size.
type Store struct {
	dev       Dev
	blockSize int64
	nBlocks   int64
}

// OpenStore opens the block store on top of the device.
func OpenStore(dev Dev, blockSize int64) (*Store, error) {
	if blockSize <= 0 {
		return nil, errors.Errorf("invalid block size: %d", blockSize)
	}
	nBlocks := dev.Size() / blockSize
	if nBlocks == 0 {
		return nil, errors.Errorf("device is too small, minimum size is: %d bytes, provided: %d", blockSize, dev.Size())
	}

	return &Store{
		dev:       dev,
		blockSize: blockSize,
		nBlocks:   nBlocks,
	}, nil
}

// NBlocks returns the number of blocks available on the device.
func (s *Store) NBlocks() int64 {
	return s.nBlocks
}

// ReadBlock reads raw block bytes from the addressed block.
func (s *Store) ReadBlock(index int64, p []byte) error {
	if err := s.validate(index, p); err != nil {
		return err
	}

	if _, err := s.dev.Seek(index*s.blockSize, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	n, err := io.ReadFull(s.dev, p)
	if err != nil {
		return errors.Wrapf(ErrStoreIO, "reading block %d, %d of %d bytes transferred: %s", index, n, len(p), err)
	}
	return nil
}

// WriteBlock writes raw block bytes to the addressed block.
func (s *Store) WriteBlock(index int64, p []byte) error {
	if err := s.validate(index, p); err != nil {
		return err
	}

	if _, err := s.dev.Seek(index*s.blockSize, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	n, err := s.dev.Write(p)
	if err != nil || n != len(p) {
		return errors.Wrapf(ErrStoreIO, "writing block %d, %d of %d bytes transferred: %v", index, n, len(p), err)
	}
	return nil
}

// Sync forces data to be written to the dev.
func (s *Store) Sync() error {
	return errors.WithStack(s.dev.Sync())
}

// Close closes the device.
func (s *Store) Close() error {
	return errors.WithStack(s.dev.Close())
}

func (s *Store) validate(index int64, p []byte) error {
	if int64(len(p)) != s.blockSize {
		return errors.Errorf("invalid size of buffer: %d, expected: %d", len(p), s.blockSize)
	}
	if index < 0 || index >= s.nBlocks {
		return errors.Errorf("block %d out of range, store has %d blocks", index, s.nBlocks)
	}
	return nil
}
