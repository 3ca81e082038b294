package diskvideo

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/outofforest/diskvideo/blockstore"
	"github.com/outofforest/diskvideo/cache"
	"github.com/outofforest/diskvideo/staging"
	"github.com/outofforest/diskvideo/types"
)

const (
	// DefaultCacheSize is the memory used by cache entries if nothing else is requested.
	DefaultCacheSize = 64 * 1024

	// MinCacheSize is the smallest accepted cache size.
	MinCacheSize = 4 * 1024

	// DefaultStatusInterval is the minimum time between two progress reports.
	DefaultStatusInterval = 100 * time.Millisecond
)

// ErrClosed is returned when session is used after Close.
var ErrClosed = errors.New("disk video session is closed")

// Mode defines how the pixels are laid out.
type Mode byte

// Supported modes.
const (
	// ModePlain stores one palette index per pixel.
	ModePlain Mode = iota
	// ModeTarga stores three bytes (blue, green, red) per pixel after the file header.
	ModeTarga
	// ModePotential stores 16-bit values, high bytes in the upper half of rows, low bytes in the lower one.
	ModePotential
)

func (m Mode) String() string {
	switch m {
	case ModeTarga:
		return "targa"
	case ModePotential:
		return "potential"
	default:
		return "plain"
	}
}

// Options configures the session.
type Options struct {
	// Width is the number of pixels in a row.
	Width int64
	// Height is the number of rows.
	Height int64
	// Colors is the number of colors, it decides how many pixels are packed into one byte of the store.
	Colors int
	// Medium is the preferred medium of the backing store. Memory is used if not set.
	Medium blockstore.Medium
	// CacheSize is the memory available for cache entries.
	CacheSize int64
	// TempDir is where temporary disk stores are created.
	TempDir string
	// KVDir is where temporary kv stores are created. TempDir is used if empty.
	KVDir string
	// MemoryReserve is the amount of memory which must stay free when store is kept in memory.
	MemoryReserve uint64
	// Probe reports free memory and disk space, system probe is used if nil.
	Probe blockstore.Probe
	// Logger is an optional logger. If nil, logrus.New() is used.
	Logger *logrus.Logger
	// Reporter receives progress messages. If nil, messages are logged on debug level.
	Reporter Reporter
	// StatusInterval is the minimum time between progress reports.
	StatusInterval time.Duration
}

// Stats collects counters of all the layers.
type Stats struct {
	Cache   cache.Stats
	Staging staging.Stats
	Store   blockstore.Stats
}

// Session is the disk video opened for single image.
type Session struct {
	mode     Mode
	width    int64
	height   int64
	colors   int
	log      *logrus.Logger
	reporter Reporter
	interval time.Duration
	now      func() time.Time

	handle *blockstore.Handle
	buffer *staging.Buffer
	cache  *cache.Cache

	lastStatus time.Time
	err        error
	closed     bool
}

// Open creates session storing width x height pixels of the requested number of colors.
func Open(ctx context.Context, opts Options) (*Session, error) {
	return open(ctx, opts, ModePlain, nil)
}

// OpenTarga creates session storing 24-bit pixels preceded by the header. Pixels are never packed and
// the store is treated as containing data, so every block is read from it.
func OpenTarga(ctx context.Context, opts Options, header []byte) (*Session, error) {
	if opts.Medium == blockstore.MediumNowhere {
		opts.Medium = blockstore.MediumDisk
	}
	return open(ctx, opts, ModeTarga, header)
}

// OpenPotential creates session storing 16-bit continuous potential values.
func OpenPotential(ctx context.Context, opts Options) (*Session, error) {
	return open(ctx, opts, ModePotential, nil)
}

func open(ctx context.Context, opts Options, mode Mode, header []byte) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", opts.Width, opts.Height)
	}
	if opts.Colors < 2 {
		return nil, errors.Errorf("invalid number of colors %d, at least 2 required", opts.Colors)
	}
	if opts.Medium == blockstore.MediumNowhere {
		opts.Medium = blockstore.MediumMemory
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheSize < MinCacheSize {
		return nil, errors.Errorf("cache size %s is below minimum of %s",
			humanize.IBytes(uint64(opts.CacheSize)), humanize.IBytes(MinCacheSize))
	}
	if opts.StatusInterval == 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Reporter == nil {
		opts.Reporter = NewLogReporter(opts.Logger)
	}

	rowStride := opts.Width
	rowCount := opts.Height
	shift := cache.PixelShiftFor(opts.Colors)
	switch mode {
	case ModeTarga:
		rowStride *= 3
		shift = 0
	case ModePotential:
		rowCount *= 2
		shift = 0
	}

	geometry, err := cache.NewGeometry(rowStride, rowCount, int64(len(header)), shift)
	if err != nil {
		return nil, err
	}

	s := &Session{
		mode:     mode,
		width:    opts.Width,
		height:   opts.Height,
		colors:   opts.Colors,
		log:      opts.Logger,
		reporter: opts.Reporter,
		interval: opts.StatusInterval,
		now:      time.Now,
	}

	s.reporter.Status(0, "clearing the 'screen'")

	allocator := blockstore.NewAllocator(blockstore.Config{
		TempDir:       opts.TempDir,
		KVDir:         opts.KVDir,
		MemoryReserve: opts.MemoryReserve,
		Probe:         opts.Probe,
		Logger:        opts.Logger,
	})
	s.handle, err = allocator.Allocate(types.BlockLen, geometry.StoreBlocks(), opts.Medium)
	if err != nil {
		s.reporter.Status(ErrorLine, err.Error())
		return nil, err
	}

	if err := s.init(ctx, geometry, header, opts.CacheSize); err != nil {
		_ = s.handle.Release()
		s.reporter.Status(ErrorLine, err.Error())
		return nil, err
	}

	s.reporter.Status(0, "")
	s.log.WithFields(logrus.Fields{
		"mode":    mode.String(),
		"width":   opts.Width,
		"height":  opts.Height,
		"colors":  opts.Colors,
		"medium":  s.handle.Medium().String(),
		"store":   humanize.IBytes(uint64(geometry.StoreBlocks() * types.BlockLen)),
		"cache":   humanize.IBytes(uint64(int64(s.cache.Entries()) * cache.EntrySize)),
		"entries": s.cache.Entries(),
	}).Info("Disk video opened")

	return s, nil
}

func (s *Session) init(ctx context.Context, geometry cache.Geometry, header []byte, cacheSize int64) error {
	var err error
	s.buffer, err = staging.New(s.handle, geometry.HeaderLength)
	if err != nil {
		return err
	}
	s.cache, err = cache.New(s.buffer, geometry, cache.Config{
		Entries:     max(cache.EntriesFor(cacheSize), 1),
		Preexisting: s.mode == ModeTarga,
	})
	if err != nil {
		return err
	}

	if s.mode == ModeTarga {
		return s.cache.WriteHeader(header)
	}
	return s.clear(ctx)
}

// clear zeroes the store so nothing left by previous user of the medium is visible.
func (s *Session) clear(ctx context.Context) error {
	zero := make([]byte, types.BlockLen)
	for i := int64(0); i < s.handle.NBlocks(); i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "disk video initialization interrupted")
		}
		if err := s.handle.WriteBlock(i, zero); err != nil {
			return err
		}
	}
	return nil
}

// Mode returns the mode of the session.
func (s *Session) Mode() Mode {
	return s.mode
}

// Width returns the number of pixels in a row.
func (s *Session) Width() int64 {
	return s.width
}

// Height returns the number of rows of the image.
func (s *Session) Height() int64 {
	return s.height
}

// Colors returns the number of colors.
func (s *Session) Colors() int {
	return s.colors
}

// Medium returns the medium used by the backing store.
func (s *Session) Medium() blockstore.Medium {
	return s.handle.Medium()
}

// Geometry returns the geometry of the virtual image.
func (s *Session) Geometry() cache.Geometry {
	return s.cache.Geometry()
}

// Stats returns counters of all the layers.
func (s *Session) Stats() Stats {
	return Stats{
		Cache:   s.cache.Stats(),
		Staging: s.buffer.Stats(),
		Store:   s.handle.Stats(),
	}
}

// Err returns the error which broke the session, if any.
func (s *Session) Err() error {
	return s.err
}

// ReadPixel returns the color of the pixel. Pixels outside the image are 0.
func (s *Session) ReadPixel(x, y int64) (byte, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	s.progress("reading", y)
	v, err := s.cache.ReadPixel(x, y)
	return v, s.fail(err)
}

// WritePixel sets the color of the pixel. Pixels outside the image are ignored.
func (s *Session) WritePixel(x, y int64, color byte) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.progress("writing", y)
	return s.fail(s.cache.WritePixel(x, y, color))
}

// ReadBlock returns size bytes of the virtual image starting at offset. The range must stay within one block.
func (s *Session) ReadBlock(offset int64, size int) ([]byte, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.Wrapf(cache.ErrOutOfBounds, "negative size %d", size)
	}
	p := make([]byte, size)
	if err := s.cache.ReadBlock(offset, p); err != nil {
		return nil, s.fail(err)
	}
	return p, nil
}

// WriteBlock stores data in the virtual image starting at offset. The range must stay within one block.
func (s *Session) WriteBlock(offset int64, data []byte) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.fail(s.cache.WriteBlock(offset, data))
}

// TargaReadPixel returns the color components of the pixel.
func (s *Session) TargaReadPixel(x, y int64) (red, green, blue byte, err error) {
	if err := s.requireMode(ModeTarga); err != nil {
		return 0, 0, 0, err
	}
	if x < 0 || x >= s.width {
		return 0, 0, 0, nil
	}
	if blue, err = s.ReadPixel(3*x, y); err != nil {
		return 0, 0, 0, err
	}
	if green, err = s.ReadPixel(3*x+1, y); err != nil {
		return 0, 0, 0, err
	}
	if red, err = s.ReadPixel(3*x+2, y); err != nil {
		return 0, 0, 0, err
	}
	return red, green, blue, nil
}

// TargaWritePixel sets the color components of the pixel.
func (s *Session) TargaWritePixel(x, y int64, red, green, blue byte) error {
	if err := s.requireMode(ModeTarga); err != nil {
		return err
	}
	if x < 0 || x >= s.width {
		return nil
	}
	if err := s.WritePixel(3*x, y, blue); err != nil {
		return err
	}
	if err := s.WritePixel(3*x+1, y, green); err != nil {
		return err
	}
	return s.WritePixel(3*x+2, y, red)
}

// Header returns the header stored in front of the targa pixels.
func (s *Session) Header() ([]byte, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	header := make([]byte, s.cache.Geometry().HeaderLength)
	if len(header) == 0 {
		return header, nil
	}
	if err := s.cache.ReadHeader(header); err != nil {
		return nil, s.fail(err)
	}
	return header, nil
}

// ReadPotential returns 16-bit potential of the pixel.
func (s *Session) ReadPotential(x, y int64) (uint16, error) {
	if err := s.requireMode(ModePotential); err != nil {
		return 0, err
	}
	if y < 0 || y >= s.height {
		return 0, nil
	}
	high, err := s.ReadPixel(x, y)
	if err != nil {
		return 0, err
	}
	low, err := s.ReadPixel(x, y+s.height)
	if err != nil {
		return 0, err
	}
	return uint16(high)<<8 | uint16(low), nil
}

// WritePotential sets 16-bit potential of the pixel.
func (s *Session) WritePotential(x, y int64, potential uint16) error {
	if err := s.requireMode(ModePotential); err != nil {
		return err
	}
	if y < 0 || y >= s.height {
		return nil
	}
	if err := s.WritePixel(x, y, byte(potential>>8)); err != nil {
		return err
	}
	return s.WritePixel(x, y+s.height, byte(potential))
}

// Flush writes all the modified pixels to the backing store.
func (s *Session) Flush() error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.fail(s.cache.Flush())
}

// Close flushes modified pixels and releases the backing store. If the session has failed before,
// the error is returned and modified pixels are lost. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.err
	if err == nil {
		err = s.fail(s.cache.Flush())
	}
	if releaseErr := s.handle.Release(); err == nil {
		err = releaseErr
	}

	stats := s.Stats()
	s.log.WithFields(logrus.Fields{
		"hits":      stats.Cache.Hits,
		"misses":    stats.Cache.Misses,
		"evictions": stats.Cache.Evictions,
		"flushed":   stats.Cache.Flushed,
		"reads":     stats.Store.Reads,
		"writes":    stats.Store.Writes,
	}).Info("Disk video closed")

	return err
}

func (s *Session) usable() error {
	if s.closed {
		return errors.WithStack(ErrClosed)
	}
	return s.err
}

func (s *Session) requireMode(mode Mode) error {
	if s.mode != mode {
		return errors.Errorf("operation requires %s mode, session is in %s mode", mode, s.mode)
	}
	return nil
}

// fail makes store failures sticky. Bulk range errors leave the session usable.
func (s *Session) fail(err error) error {
	if err == nil || errors.Is(err, cache.ErrOutOfBounds) {
		return err
	}
	if s.err == nil {
		s.err = err
		s.reporter.Status(ErrorLine, err.Error())
	}
	return err
}
