package cache

import (
	"bytes"
	"math"

	"github.com/pkg/errors"

	"github.com/outofforest/diskvideo/staging"
	"github.com/outofforest/diskvideo/types"
)

// Config configures the cache.
type Config struct {
	// Entries is the number of blocks kept in memory.
	Entries int
	// Preexisting tells that the store contains image data, so blocks are always read from it.
	Preexisting bool
}

// Cache is the write-back pixel cache sitting between pixel accesses and the staging buffer.
type Cache struct {
	buffer   *staging.Buffer
	geometry Geometry
	entries  []entry
	hash     [HashSize]int
	hand     int

	current    int
	curOffset  int64
	curRow     int64
	curRowBase int64
	highOffset int64
	seekOffset int64

	stats Stats
}

// New creates new cache.
func New(buffer *staging.Buffer, geometry Geometry, config Config) (*Cache, error) {
	if config.Entries < 1 {
		return nil, errors.Errorf("cache must have at least one entry, %d requested", config.Entries)
	}
	if buffer.HeaderLength() != geometry.HeaderLength {
		return nil, errors.Errorf("header length mismatch, buffer: %d, geometry: %d",
			buffer.HeaderLength(), geometry.HeaderLength)
	}

	c := &Cache{
		buffer:     buffer,
		geometry:   geometry,
		entries:    make([]entry, config.Entries),
		current:    noEntry,
		curOffset:  noOffset,
		curRow:     noOffset,
		highOffset: noOffset,
		seekOffset: noOffset,
	}
	if config.Preexisting {
		c.highOffset = math.MaxInt64
	}
	for i := range c.hash {
		c.hash[i] = noEntry
	}
	for i := range c.entries {
		c.entries[i].hashLink = noEntry
	}
	return c, nil
}

// Geometry returns the geometry of the image.
func (c *Cache) Geometry() Geometry {
	return c.geometry
}

// Entries returns the number of cache entries.
func (c *Cache) Entries() int {
	return len(c.entries)
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// ReadPixel returns the pixel. Pixels outside the image read as 0.
func (c *Cache) ReadPixel(x, y int64) (byte, error) {
	offset, ok := c.address(x, y)
	if !ok {
		return 0, nil
	}
	if err := c.ensure(types.BlockOffset(offset)); err != nil {
		return 0, err
	}
	return c.entries[c.current].pixels[offset&types.BlockMask], nil
}

// WritePixel stores the pixel. Pixels outside the image are ignored.
func (c *Cache) WritePixel(x, y int64, color byte) error {
	offset, ok := c.address(x, y)
	if !ok {
		return nil
	}
	if err := c.ensure(types.BlockOffset(offset)); err != nil {
		return err
	}
	e := &c.entries[c.current]
	if pos := offset & types.BlockMask; e.pixels[pos] != color {
		e.pixels[pos] = color
		e.dirty = true
	}
	return nil
}

// ReadBlock copies len(p) pixels starting at virtual offset into p. The range must not cross block boundary.
func (c *Cache) ReadBlock(offset int64, p []byte) error {
	if err := c.checkBulk(offset, len(p)); err != nil {
		return err
	}
	if err := c.ensure(types.BlockOffset(offset)); err != nil {
		return err
	}
	copy(p, c.entries[c.current].pixels[offset&types.BlockMask:])
	return nil
}

// WriteBlock copies p into pixels starting at virtual offset. The range must not cross block boundary.
func (c *Cache) WriteBlock(offset int64, p []byte) error {
	if err := c.checkBulk(offset, len(p)); err != nil {
		return err
	}
	if err := c.ensure(types.BlockOffset(offset)); err != nil {
		return err
	}
	e := &c.entries[c.current]
	pos := offset & types.BlockMask
	if !bytes.Equal(e.pixels[pos:pos+int64(len(p))], p) {
		copy(e.pixels[pos:], p)
		e.dirty = true
	}
	return nil
}

// Flush writes all dirty entries and the staging buffer to the store.
func (c *Cache) Flush() error {
	for i := range c.entries {
		if c.entries[i].dirty {
			if err := c.flush(i); err != nil {
				return err
			}
		}
	}
	return c.buffer.Flush()
}

// WriteHeader stores header bytes preceding the image in the store.
func (c *Cache) WriteHeader(header []byte) error {
	c.seekOffset = noOffset
	return c.buffer.WriteHeader(header)
}

// ReadHeader reads header bytes preceding the image in the store.
func (c *Cache) ReadHeader(p []byte) error {
	c.seekOffset = noOffset
	return c.buffer.ReadHeader(p)
}

func (c *Cache) address(x, y int64) (int64, bool) {
	if y != c.curRow {
		if y < 0 || y >= c.geometry.RowCount {
			return 0, false
		}
		c.curRow = y
		c.curRowBase = y * c.geometry.RowStride
	}
	if x < 0 || x >= c.geometry.RowStride {
		return 0, false
	}
	return c.curRowBase + x, true
}

func (c *Cache) checkBulk(offset int64, size int) error {
	if offset < 0 || offset >= c.geometry.Limit() || size < 0 || offset+int64(size) > c.geometry.Limit() {
		return errors.Wrapf(ErrOutOfBounds, "range [%d, %d) outside the image of %d bytes",
			offset, offset+int64(size), c.geometry.Limit())
	}
	if offset&types.BlockMask+int64(size) > types.BlockLen {
		return errors.Wrapf(ErrOutOfBounds, "range [%d, %d) crosses block boundary", offset, offset+int64(size))
	}
	return nil
}

func (c *Cache) ensure(blockOffset int64) error {
	if blockOffset == c.curOffset {
		return nil
	}
	return c.locate(blockOffset)
}

func bucket(offset int64) int {
	return int(offset>>types.BlockShift) & (HashSize - 1)
}

func (c *Cache) find(offset int64) (int, bool) {
	for i := c.hash[bucket(offset)]; i != noEntry; i = c.entries[i].hashLink {
		if c.entries[i].offset == offset {
			return i, true
		}
	}
	return noEntry, false
}

func (c *Cache) locate(offset int64) error {
	if i, ok := c.find(offset); ok {
		c.stats.Hits++
		c.entries[i].recentlyUsed = true
		c.current = i
		c.curOffset = offset
		return nil
	}
	c.stats.Misses++

	victim := c.nextVictim()
	e := &c.entries[victim]
	if e.dirty {
		if err := c.flush(victim); err != nil {
			return err
		}
	}
	if e.valid {
		c.stats.Evictions++
		c.unlink(victim)
	}
	if victim == c.current {
		c.current = noEntry
		c.curOffset = noOffset
	}

	e.offset = offset
	e.dirty = false
	e.recentlyUsed = true
	e.valid = false
	if offset > c.highOffset {
		c.highOffset = offset
		c.stats.ZeroFills++
		clear(e.pixels[:])
	} else if err := c.load(e); err != nil {
		return err
	}
	e.valid = true

	b := bucket(offset)
	e.hashLink = c.hash[b]
	c.hash[b] = victim
	c.current = victim
	c.curOffset = offset
	return nil
}

// nextVictim advances the clock hand until it finds entry which hasn't been used recently.
func (c *Cache) nextVictim() int {
	for {
		c.hand++
		if c.hand >= len(c.entries) {
			c.hand = 0
		}
		e := &c.entries[c.hand]
		if !e.recentlyUsed {
			return c.hand
		}
		e.recentlyUsed = false
	}
}

func (c *Cache) unlink(index int) {
	link := &c.hash[bucket(c.entries[index].offset)]
	for *link != index {
		link = &c.entries[*link].hashLink
	}
	*link = c.entries[index].hashLink
	c.entries[index].hashLink = noEntry
}

func (c *Cache) load(e *entry) error {
	shift := c.geometry.PixelShift
	if e.offset != c.seekOffset {
		c.stats.Seeks++
		if err := c.buffer.Seek(e.offset >> shift); err != nil {
			c.seekOffset = noOffset
			return err
		}
	}
	c.seekOffset = e.offset + types.BlockLen
	c.stats.Loads++

	step := 1 << shift
	for i := 0; i < len(e.pixels); i += step {
		b, err := c.buffer.GetByte()
		if err != nil {
			c.seekOffset = noOffset
			return err
		}
		unpackByte(e.pixels[i:], b, shift)
	}
	return nil
}

// flush writes the dirty entry together with dirty neighbours separated by small gaps, so the run
// is written sequentially after a single seek.
func (c *Cache) flush(index int) error {
	defer func() {
		c.seekOffset = noOffset
	}()

	start := index
	offset := c.entries[index].offset
	for gap := 1; gap <= WriteGap; gap++ {
		offset -= types.BlockLen
		if i, ok := c.find(offset); ok && c.entries[i].dirty {
			start = i
			gap = 0
		}
	}

	for i, ok := start, true; ok; {
		c.stats.Seeks++
		if err := c.buffer.Seek(c.entries[i].offset >> c.geometry.PixelShift); err != nil {
			return err
		}
		for {
			if err := c.write(&c.entries[i]); err != nil {
				return err
			}
			next, found := c.find(c.entries[i].offset + types.BlockLen)
			if !found || !c.entries[next].dirty {
				break
			}
			i = next
		}

		ok = false
		probe := c.entries[i].offset + types.BlockLen
		for gap := 2; gap <= WriteGap; gap++ {
			probe += types.BlockLen
			if next, found := c.find(probe); found && c.entries[next].dirty {
				i, ok = next, true
				break
			}
		}
	}
	return nil
}

func (c *Cache) write(e *entry) error {
	shift := c.geometry.PixelShift
	step := 1 << shift
	for i := 0; i < len(e.pixels); i += step {
		if err := c.buffer.PutByte(packByte(e.pixels[i:], shift)); err != nil {
			return err
		}
	}
	e.dirty = false
	c.stats.Flushed++
	return nil
}
