package snapshot

import (
	"bytes"
	"context"
	"io"
	"os"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/natefinch/atomic"
	"github.com/outofforest/photon"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz/lzma"

	"github.com/outofforest/diskvideo"
	"github.com/outofforest/diskvideo/types"
)

const (
	magic   uint64 = 0x44564944454f5631 // DVIDEOV1
	version uint64 = 1
)

// ErrInvalid is returned when file is not a valid snapshot.
var ErrInvalid = errors.New("invalid snapshot")

type header struct {
	Magic        uint64
	Version      uint64
	Mode         uint64
	Width        int64
	Height       int64
	Colors       int64
	HeaderLength int64
	Size         int64
	Checksum     uint64
}

var headerSize = int(unsafe.Sizeof(header{}))

// Info describes the snapshot.
type Info struct {
	Mode           diskvideo.Mode
	Width          int64
	Height         int64
	Colors         int
	HeaderLength   int64
	Size           int64
	CompressedSize int64
	Checksum       uint64
}

// Save stores the image of the session in the file. File is replaced atomically.
func Save(path string, s *diskvideo.Session) error {
	targaHeader, err := s.Header()
	if err != nil {
		return err
	}

	var compressed bytes.Buffer
	w, err := lzma.NewWriter(&compressed)
	if err != nil {
		return errors.WithStack(err)
	}
	hasher := xxhash.New()
	out := io.MultiWriter(w, hasher)

	if _, err := out.Write(targaHeader); err != nil {
		return errors.WithStack(err)
	}

	size := s.Geometry().Pixels()
	for offset := int64(0); offset < size; {
		n := min(types.BlockLen-offset&types.BlockMask, size-offset)
		chunk, err := s.ReadBlock(offset, int(n))
		if err != nil {
			return err
		}
		if _, err := out.Write(chunk); err != nil {
			return errors.WithStack(err)
		}
		offset += n
	}
	if err := w.Close(); err != nil {
		return errors.WithStack(err)
	}

	h := photon.NewFromValue(&header{
		Magic:        magic,
		Version:      version,
		Mode:         uint64(s.Mode()),
		Width:        s.Width(),
		Height:       s.Height(),
		Colors:       int64(s.Colors()),
		HeaderLength: int64(len(targaHeader)),
		Size:         int64(len(targaHeader)) + size,
		Checksum:     hasher.Sum64(),
	})

	return errors.WithStack(atomic.WriteFile(path, io.MultiReader(bytes.NewReader(h.B), &compressed)))
}

// Stat returns information about the snapshot without decompressing it.
func Stat(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.WithStack(err)
	}
	defer f.Close()

	h, err := readHeader(f)
	if err != nil {
		return Info{}, err
	}
	st, err := f.Stat()
	if err != nil {
		return Info{}, errors.WithStack(err)
	}
	return Info{
		Mode:           diskvideo.Mode(h.Mode),
		Width:          h.Width,
		Height:         h.Height,
		Colors:         int(h.Colors),
		HeaderLength:   h.HeaderLength,
		Size:           h.Size,
		CompressedSize: st.Size() - int64(headerSize),
		Checksum:       h.Checksum,
	}, nil
}

// Load opens new session and fills it with the image stored in the file. Geometry stored in the snapshot
// overrides the one in opts.
func Load(ctx context.Context, path string, opts diskvideo.Options) (*diskvideo.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	h, err := readHeader(f)
	if err != nil {
		return nil, err
	}

	r, err := lzma.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalid, "opening compressed stream: %s", err)
	}
	hasher := xxhash.New()
	in := io.TeeReader(r, hasher)

	targaHeader := make([]byte, h.HeaderLength)
	if _, err := io.ReadFull(in, targaHeader); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "reading header: %s", err)
	}

	opts.Width = h.Width
	opts.Height = h.Height
	opts.Colors = int(h.Colors)

	var s *diskvideo.Session
	switch diskvideo.Mode(h.Mode) {
	case diskvideo.ModePlain:
		s, err = diskvideo.Open(ctx, opts)
	case diskvideo.ModeTarga:
		s, err = diskvideo.OpenTarga(ctx, opts, targaHeader)
	case diskvideo.ModePotential:
		s, err = diskvideo.OpenPotential(ctx, opts)
	default:
		return nil, errors.Wrapf(ErrInvalid, "unknown mode %d", h.Mode)
	}
	if err != nil {
		return nil, err
	}

	if err := fill(ctx, s, in, hasher, h); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func fill(ctx context.Context, s *diskvideo.Session, in io.Reader, hasher *xxhash.Digest, h header) error {
	size := s.Geometry().Pixels()
	if h.Size != h.HeaderLength+size {
		return errors.Wrapf(ErrInvalid, "payload of %d bytes does not match geometry", h.Size)
	}

	chunk := make([]byte, types.BlockLen)
	zero := make([]byte, types.BlockLen)
	for offset := int64(0); offset < size; {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		n := min(types.BlockLen-offset&types.BlockMask, size-offset)
		if _, err := io.ReadFull(in, chunk[:n]); err != nil {
			return errors.Wrapf(ErrInvalid, "reading pixels at offset %d: %s", offset, err)
		}
		// Fresh store is already zeroed.
		if !bytes.Equal(chunk[:n], zero[:n]) {
			if err := s.WriteBlock(offset, chunk[:n]); err != nil {
				return err
			}
		}
		offset += n
	}

	if checksum := hasher.Sum64(); checksum != h.Checksum {
		return errors.Wrapf(ErrInvalid, "checksum mismatch, expected: %#x, computed: %#x", h.Checksum, checksum)
	}
	return nil
}

func readHeader(r io.Reader) (header, error) {
	h := photon.NewFromBytes[header](make([]byte, headerSize))
	if _, err := io.ReadFull(r, h.B); err != nil {
		return header{}, errors.Wrapf(ErrInvalid, "reading header: %s", err)
	}
	if h.V.Magic != magic {
		return header{}, errors.Wrapf(ErrInvalid, "unexpected magic %#x", h.V.Magic)
	}
	if h.V.Version != version {
		return header{}, errors.Wrapf(ErrInvalid, "unsupported version %d", h.V.Version)
	}
	if h.V.HeaderLength < 0 || h.V.HeaderLength > types.BlockLen {
		return header{}, errors.Wrapf(ErrInvalid, "invalid header length %d", h.V.HeaderLength)
	}
	return *h.V, nil
}
