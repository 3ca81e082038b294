package snapshot

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/diskvideo"
)

type fakeProbe struct{}

func (fakeProbe) FreeMemory() (uint64, error) {
	return 1 << 30, nil
}

func (fakeProbe) FreeDisk(string) (uint64, error) {
	return 1 << 30, nil
}

func testOptions(t *testing.T, width, height int64, colors int) diskvideo.Options {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return diskvideo.Options{
		Width:    width,
		Height:   height,
		Colors:   colors,
		TempDir:  t.TempDir(),
		Probe:    fakeProbe{},
		Logger:   log,
		Reporter: diskvideo.NopReporter,
	}
}

func TestSaveLoad(t *testing.T) {
	requireT := require.New(t)
	ctx := context.Background()

	s, err := diskvideo.Open(ctx, testOptions(t, 320, 200, 16))
	requireT.NoError(err)
	defer s.Close()

	for y := int64(0); y < 200; y++ {
		for x := int64(0); x < 320; x += y%5 + 1 {
			requireT.NoError(s.WritePixel(x, y, byte(x*y%16)))
		}
	}

	path := filepath.Join(t.TempDir(), "image.dvs")
	requireT.NoError(Save(path, s))

	info, err := Stat(path)
	requireT.NoError(err)
	requireT.Equal(diskvideo.ModePlain, info.Mode)
	requireT.EqualValues(320, info.Width)
	requireT.EqualValues(200, info.Height)
	requireT.Equal(16, info.Colors)
	requireT.EqualValues(320*200, info.Size)
	requireT.Less(info.CompressedSize, info.Size)

	s2, err := Load(ctx, path, testOptions(t, 1, 1, 2))
	requireT.NoError(err)
	defer s2.Close()

	requireT.EqualValues(320, s2.Width())
	requireT.EqualValues(200, s2.Height())
	for y := int64(0); y < 200; y++ {
		for x := int64(0); x < 320; x++ {
			v1, err := s.ReadPixel(x, y)
			requireT.NoError(err)
			v2, err := s2.ReadPixel(x, y)
			requireT.NoError(err)
			requireT.Equal(v1, v2)
		}
	}
}

func TestSaveLoadTarga(t *testing.T) {
	requireT := require.New(t)
	ctx := context.Background()

	header := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 16, 0, 8, 0, 24, 32}
	s, err := diskvideo.OpenTarga(ctx, testOptions(t, 16, 8, 256), header)
	requireT.NoError(err)
	defer s.Close()

	requireT.NoError(s.TargaWritePixel(15, 7, 1, 2, 3))

	path := filepath.Join(t.TempDir(), "image.dvs")
	requireT.NoError(Save(path, s))

	s2, err := Load(ctx, path, testOptions(t, 1, 1, 2))
	requireT.NoError(err)
	defer s2.Close()

	requireT.Equal(diskvideo.ModeTarga, s2.Mode())
	stored, err := s2.Header()
	requireT.NoError(err)
	requireT.Equal(header, stored)

	red, green, blue, err := s2.TargaReadPixel(15, 7)
	requireT.NoError(err)
	requireT.Equal([]byte{1, 2, 3}, []byte{red, green, blue})
}

func TestSaveLoadPotential(t *testing.T) {
	requireT := require.New(t)
	ctx := context.Background()

	s, err := diskvideo.OpenPotential(ctx, testOptions(t, 30, 20, 256))
	requireT.NoError(err)
	defer s.Close()

	requireT.NoError(s.WritePotential(29, 19, 0x1234))

	path := filepath.Join(t.TempDir(), "image.dvs")
	requireT.NoError(Save(path, s))

	s2, err := Load(ctx, path, testOptions(t, 1, 1, 2))
	requireT.NoError(err)
	defer s2.Close()

	v, err := s2.ReadPotential(29, 19)
	requireT.NoError(err)
	requireT.EqualValues(0x1234, v)
}

func TestLoadRejectsCorruptedFiles(t *testing.T) {
	requireT := require.New(t)
	ctx := context.Background()

	s, err := diskvideo.Open(ctx, testOptions(t, 64, 64, 256))
	requireT.NoError(err)
	defer s.Close()
	requireT.NoError(s.WritePixel(1, 1, 1))

	path := filepath.Join(t.TempDir(), "image.dvs")
	requireT.NoError(Save(path, s))

	data, err := os.ReadFile(path)
	requireT.NoError(err)

	checksumCorrupted := append([]byte{}, data...)
	checksumCorrupted[headerSize-1] ^= 0xff
	requireT.NoError(os.WriteFile(path, checksumCorrupted, 0o600))
	_, err = Load(ctx, path, testOptions(t, 1, 1, 2))
	requireT.ErrorIs(err, ErrInvalid)

	magicCorrupted := append([]byte{}, data...)
	magicCorrupted[0] ^= 0xff
	requireT.NoError(os.WriteFile(path, magicCorrupted, 0o600))
	_, err = Load(ctx, path, testOptions(t, 1, 1, 2))
	requireT.ErrorIs(err, ErrInvalid)
	_, err = Stat(path)
	requireT.ErrorIs(err, ErrInvalid)

	requireT.NoError(os.WriteFile(path, data[:headerSize/2], 0o600))
	_, err = Stat(path)
	requireT.ErrorIs(err, ErrInvalid)
}
