package blockstore

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
	"github.com/sirupsen/logrus"

	"github.com/outofforest/diskvideo/persistence"
	"github.com/outofforest/diskvideo/pkg/filedev"
	"github.com/outofforest/diskvideo/pkg/kvdev"
	"github.com/outofforest/diskvideo/pkg/memdev"
)

// Medium is the enum representing where the blocks are stored.
type Medium byte

// Enum of possible media.
const (
	MediumNowhere Medium = iota
	MediumMemory
	MediumDisk
	MediumKV
)

func (m Medium) String() string {
	switch m {
	case MediumMemory:
		return "memory"
	case MediumDisk:
		return "disk"
	case MediumKV:
		return "kv"
	default:
		return "nowhere"
	}
}

// ParseMedium converts the name of the medium to its value.
func ParseMedium(name string) (Medium, error) {
	for _, m := range []Medium{MediumMemory, MediumDisk, MediumKV} {
		if m.String() == name {
			return m, nil
		}
	}
	return MediumNowhere, errors.Errorf("unknown medium %q", name)
}

// ErrAllocationFailure is returned if no medium is able to provide the requested capacity.
var ErrAllocationFailure = errors.New("insufficient free memory/disk space")

// BlockIO is the block-level contract provided by each medium.
type BlockIO interface {
	ReadBlock(index int64, p []byte) error
	WriteBlock(index int64, p []byte) error
	Close() error
}

// Probe reports free capacity of the media.
type Probe interface {
	FreeMemory() (uint64, error)
	FreeDisk(path string) (uint64, error)
}

// Config configures the allocator.
type Config struct {
	// TempDir is the directory used for disk medium. os.TempDir() is used if empty.
	TempDir string
	// KVDir is the directory used for kv medium. TempDir is used if empty.
	KVDir string
	// MemoryReserve is the amount of memory which must stay free after allocating memory medium.
	MemoryReserve uint64
	// Probe reports free capacity. System probe based on gopsutil is used if nil.
	Probe Probe
	// Logger is an optional logger. If nil, logrus.New() is used.
	Logger *logrus.Logger
}

// Allocator allocates block stores.
type Allocator struct {
	config Config
	log    *logrus.Logger
}

// NewAllocator returns new allocator.
func NewAllocator(config Config) *Allocator {
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if config.KVDir == "" {
		config.KVDir = config.TempDir
	}
	if config.Probe == nil {
		config.Probe = SystemProbe{}
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	return &Allocator{
		config: config,
		log:    config.Logger,
	}
}

// Allocate returns handle to nBlocks blocks of blockSize bytes each, all zeroed.
// Medium hint is a preference, memory falls back to disk if there is not enough free memory.
func (a *Allocator) Allocate(blockSize, nBlocks int64, hint Medium) (*Handle, error) {
	if blockSize <= 0 || nBlocks <= 0 {
		return nil, errors.Errorf("invalid allocation request: %d blocks of %d bytes", nBlocks, blockSize)
	}
	size := uint64(blockSize * nBlocks)

	medium, err := a.selectMedium(size, hint)
	if err != nil {
		return nil, err
	}

	var bio BlockIO
	switch medium {
	case MediumMemory:
		bio, err = persistence.OpenStore(memdev.New(blockSize*nBlocks), blockSize)
	case MediumDisk:
		bio, err = openFileStore(a.config.TempDir, blockSize, nBlocks)
	case MediumKV:
		bio, err = kvdev.CreateTemp(a.config.KVDir, blockSize, nBlocks)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrAllocationFailure, "allocating %s on %s: %s", humanize.IBytes(size), medium, err)
	}

	a.log.WithFields(logrus.Fields{
		"medium":    medium.String(),
		"blocks":    nBlocks,
		"blockSize": blockSize,
		"size":      humanize.IBytes(size),
	}).Debug("Block store allocated")

	return &Handle{
		bio:       bio,
		medium:    medium,
		blockSize: blockSize,
		nBlocks:   nBlocks,
	}, nil
}

func (a *Allocator) selectMedium(size uint64, hint Medium) (Medium, error) {
	switch hint {
	case MediumMemory:
		free, err := a.config.Probe.FreeMemory()
		if err == nil && free >= size+a.config.MemoryReserve {
			return MediumMemory, nil
		}
		a.log.WithFields(logrus.Fields{
			"requested": humanize.IBytes(size),
			"free":      humanize.IBytes(free),
			"error":     err,
		}).Info("Not enough free memory, falling back to disk")
		fallthrough
	case MediumDisk:
		free, err := a.config.Probe.FreeDisk(a.config.TempDir)
		if err == nil && free >= size {
			return MediumDisk, nil
		}
		return MediumNowhere, errors.Wrapf(ErrAllocationFailure, "requested %s, free disk space in %s: %s, probe error: %v",
			humanize.IBytes(size), a.config.TempDir, humanize.IBytes(free), err)
	case MediumKV:
		free, err := a.config.Probe.FreeDisk(a.config.KVDir)
		if err == nil && free >= size {
			return MediumKV, nil
		}
		return MediumNowhere, errors.Wrapf(ErrAllocationFailure, "requested %s, free disk space in %s: %s, probe error: %v",
			humanize.IBytes(size), a.config.KVDir, humanize.IBytes(free), err)
	default:
		return MediumNowhere, errors.Errorf("invalid medium: %d", hint)
	}
}

func openFileStore(dir string, blockSize, nBlocks int64) (*persistence.Store, error) {
	dev, err := filedev.CreateTemp(dir, blockSize*nBlocks)
	if err != nil {
		return nil, err
	}
	store, err := persistence.OpenStore(dev, blockSize)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return store, nil
}

// SystemProbe reports capacity of the host using gopsutil.
type SystemProbe struct{}

// FreeMemory returns the amount of memory available for new allocations.
func (SystemProbe) FreeMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return vm.Available, nil
}

// FreeDisk returns free space of the filesystem containing path.
func (SystemProbe) FreeDisk(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return usage.Free, nil
}
