package memdev

import (
	"io"

	"github.com/pkg/errors"
)

var (
	_ io.Seeker = &MemDev{}
	_ io.Reader = &MemDev{}
	_ io.Writer = &MemDev{}
	_ io.Closer = &MemDev{}
)

// ErrClosed is returned when device is used after being closed.
var ErrClosed = errors.New("memdev has been closed")

// MemDev keeps the device content in process memory.
type MemDev struct {
	size   int64
	offset int64
	data   []byte
}

// New returns new zeroed memdev.
func New(size int64) *MemDev {
	return &MemDev{
		size: size,
		data: make([]byte, size),
	}
}

// Seek seeks the position.
func (md *MemDev) Seek(offset int64, whence int) (int64, error) {
	if md.data == nil {
		return 0, errors.WithStack(ErrClosed)
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = md.offset + offset
	case io.SeekEnd:
		offset = md.size + offset
	default:
		return 0, errors.Errorf("invalid whence: %d", whence)
	}

	if offset < 0 || offset > md.size {
		return 0, errors.Errorf("invalid offset: %d", offset)
	}

	md.offset = offset
	return offset, nil
}

// Read reads data from the memdev.
func (md *MemDev) Read(p []byte) (int, error) {
	if md.data == nil {
		return 0, errors.WithStack(ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if md.offset == md.size {
		return 0, io.EOF
	}
	n := copy(p, md.data[md.offset:])
	md.offset += int64(n)
	return n, nil
}

// Write writes data to the memdev. Bytes which don't fit are dropped and reported by the returned count.
func (md *MemDev) Write(p []byte) (int, error) {
	if md.data == nil {
		return 0, errors.WithStack(ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := copy(md.data[md.offset:], p)
	md.offset += int64(n)
	if n < len(p) {
		return n, errors.WithStack(io.ErrShortWrite)
	}
	return n, nil
}

// Sync does nothing, memory is always in sync.
func (md *MemDev) Sync() error {
	if md.data == nil {
		return errors.WithStack(ErrClosed)
	}
	return nil
}

// Size returns the byte size of the device.
func (md *MemDev) Size() int64 {
	return md.size
}

// Bytes exposes the raw content of the device.
func (md *MemDev) Bytes() []byte {
	return md.data
}

// Close releases the memory.
func (md *MemDev) Close() error {
	md.data = nil
	md.offset = 0
	return nil
}
