package filedev

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateTemp(t *testing.T) {
	requireT := require.New(t)

	dir := t.TempDir()
	dev, err := CreateTemp(dir, 4096)
	requireT.NoError(err)
	requireT.EqualValues(4096, dev.Size())
	requireT.Equal(dir, filepath.Dir(dev.Name()))

	_, err = dev.Seek(4000, io.SeekStart)
	requireT.NoError(err)
	n, err := dev.Write([]byte{0x01, 0x02})
	requireT.NoError(err)
	requireT.Equal(2, n)
	requireT.NoError(dev.Sync())

	_, err = dev.Seek(3999, io.SeekStart)
	requireT.NoError(err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(dev, buf)
	requireT.NoError(err)
	requireT.Equal([]byte{0x00, 0x01, 0x02, 0x00}, buf)

	requireT.NoError(dev.Close())
	_, err = os.Stat(dev.Name())
	requireT.True(os.IsNotExist(err))
}

func TestExistingFileIsKept(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "image")
	requireT.NoError(os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o600))

	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	requireT.NoError(err)

	dev, err := New(f)
	requireT.NoError(err)
	requireT.EqualValues(3, dev.Size())
	requireT.NoError(dev.Close())

	_, err = os.Stat(path)
	requireT.NoError(err)
}
