package kvdev

import (
	"encoding/binary"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// TempPattern is the name pattern of temporary database directories.
const TempPattern = "diskvideo-kv-*"

// KVDev stores each block as a separate key in an embedded badger database.
// Blocks which have never been written read as zeros.
type KVDev struct {
	db        *badger.DB
	dir       string
	blockSize int64
	nBlocks   int64
}

// CreateTemp opens the database in a new temporary directory inside dir. The directory is removed on Close.
func CreateTemp(dir string, blockSize, nBlocks int64) (*KVDev, error) {
	path, err := os.MkdirTemp(dir, TempPattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(false)

	db, err := badger.Open(opts)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, errors.WithStack(err)
	}

	return &KVDev{
		db:        db,
		dir:       path,
		blockSize: blockSize,
		nBlocks:   nBlocks,
	}, nil
}

// ReadBlock reads the block into p.
func (kd *KVDev) ReadBlock(index int64, p []byte) error {
	if err := kd.validate(index, p); err != nil {
		return err
	}

	err := kd.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(index))
		if errors.Is(err, badger.ErrKeyNotFound) {
			clear(p)
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if copy(p, val) != len(p) {
				return errors.Errorf("block %d is truncated, %d bytes stored", index, len(val))
			}
			return nil
		})
	})
	return errors.WithStack(err)
}

// WriteBlock stores p as the content of the block.
func (kd *KVDev) WriteBlock(index int64, p []byte) error {
	if err := kd.validate(index, p); err != nil {
		return err
	}

	value := make([]byte, len(p))
	copy(value, p)
	return errors.WithStack(kd.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(index), value)
	}))
}

// Size returns the byte size of the device.
func (kd *KVDev) Size() int64 {
	return kd.blockSize * kd.nBlocks
}

// Close closes the database and removes its directory.
func (kd *KVDev) Close() error {
	if err := kd.db.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.RemoveAll(kd.dir))
}

func (kd *KVDev) validate(index int64, p []byte) error {
	if index < 0 || index >= kd.nBlocks {
		return errors.Errorf("block %d out of range, device has %d blocks", index, kd.nBlocks)
	}
	if int64(len(p)) != kd.blockSize {
		return errors.Errorf("invalid size of buffer: %d, expected: %d", len(p), kd.blockSize)
	}
	return nil
}

func key(index int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(index))
	return k[:]
}
