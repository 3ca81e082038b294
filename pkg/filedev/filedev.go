package filedev

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

var _ io.ReadWriteSeeker = &FileDev{}

// TempPattern is the name pattern of temporary device files.
const TempPattern = "diskvideo-*.tmp"

// FileDev uses file handle as a device.
type FileDev struct {
	file      *os.File
	size      int64
	temporary bool
}

// New returns new filedev backed by an existing file.
func New(file *os.File) (*FileDev, error) {
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &FileDev{
		file: file,
		size: size,
	}, nil
}

// CreateTemp creates temporary file of the requested size in dir. The file is removed on Close.
// Space is not preallocated, so unwritten regions read as zeros.
func CreateTemp(dir string, size int64) (*FileDev, error) {
	file, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := file.Truncate(size); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, errors.WithStack(err)
	}
	return &FileDev{
		file:      file,
		size:      size,
		temporary: true,
	}, nil
}

// Seek seeks the position.
func (fd *FileDev) Seek(offset int64, whence int) (int64, error) {
	n, err := fd.file.Seek(offset, whence)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Read reads data from the file.
func (fd *FileDev) Read(p []byte) (int, error) {
	n, err := fd.file.Read(p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Write writes data to the file.
func (fd *FileDev) Write(p []byte) (int, error) {
	n, err := fd.file.Write(p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Sync syncs data to the file.
func (fd *FileDev) Sync() error {
	if err := fd.file.Sync(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Size returns the byte size of the file.
func (fd *FileDev) Size() int64 {
	return fd.size
}

// Name returns the path of the file.
func (fd *FileDev) Name() string {
	return fd.file.Name()
}

// Close closes the file and removes it if it is temporary.
func (fd *FileDev) Close() error {
	if err := fd.file.Close(); err != nil {
		return errors.WithStack(err)
	}
	if fd.temporary {
		if err := os.Remove(fd.file.Name()); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
