// Package diskcache implements RawDiskCache: a persistent, checksummed
// slice store built on top of pkg/allocator, with online defragmentation.
// The on-disk layout and mmap access pattern are grounded on the teacher's
// append-only mmap log (pkg/cache/mmap.go, pkg/cache/wal/mmap.go), adapted
// here to a fixed-capacity file of fixed-size block slots rather than a
// growing log.
package diskcache

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/sliceproxy/pkg/allocator"
	"github.com/marmos91/sliceproxy/pkg/sliceerr"
	"golang.org/x/sys/unix"
)

// DiskLocation records where a payload lives on disk, per spec.md §3.
type DiskLocation struct {
	Offset       uint64
	Size         uint32
	Checksum     uint32
	Timestamp    uint64
	Compressed   bool
	OriginalSize uint32
}

// DefragConfig tunes when and how aggressively online defragmentation runs.
type DefragConfig struct {
	FragmentationThreshold float64
	MinFreeRunBlocks       uint64
	MaxMoveBytesPerRun     uint64
	Cooldown               time.Duration
}

// DefaultDefragConfig matches the original implementation's defaults
// (tests/test_defrag_simple.rs asserts FragmentationThreshold == 0.3).
func DefaultDefragConfig() DefragConfig {
	return DefragConfig{
		FragmentationThreshold: 0.3,
		MinFreeRunBlocks:       1,
		MaxMoveBytesPerRun:     16 << 20, // 16MB
		Cooldown:               30 * time.Second,
	}
}

// DefragStats reports cumulative defragmentation activity.
type DefragStats struct {
	TotalRuns      uint64
	BytesMoved     uint64
	BlocksCompacted uint64
	LastRunAt      time.Time
}

// Metrics observes disk cache activity. A nil Metrics is always safe:
// every call site checks for nil before calling through.
type Metrics interface {
	RecordHit()
	RecordMiss()
	RecordCorruption()
	RecordDefragRun(bytesMoved uint64, duration time.Duration)
}

// Cache is the persistent, fixed-capacity slice store.
type Cache struct {
	mu sync.Mutex

	file         *os.File
	data         []byte // mmap'd view of the whole file
	capacity     uint64
	blockSize    uint64
	headerBlocks uint64

	alloc   *allocator.Allocator
	index   map[string]DiskLocation
	ttl     time.Duration
	metrics Metrics

	defragCfg    DefragConfig
	defragStats  DefragStats
	defragCursor uint64 // byte offset of the first data block, set at open
}

// keyDigest hashes an opaque application-level key string into the fixed
// 32-byte on-disk key field.
func keyDigest(key string) [keySize]byte {
	return sha256.Sum256([]byte(key))
}

// Open creates (if needed) and memory-maps a fixed-capacity disk cache at
// path, then recovers its index by scanning slot headers in block order.
func Open(path string, capacity, blockSize uint64, ttl time.Duration) (*Cache, error) {
	return OpenWithMetrics(path, capacity, blockSize, ttl, nil)
}

// OpenWithMetrics is Open, additionally reporting hit/miss/corruption/defrag
// observations to m.
func OpenWithMetrics(path string, capacity, blockSize uint64, ttl time.Duration, m Metrics) (*Cache, error) {
	return openWithMetrics(path, capacity, blockSize, ttl, m, nil)
}

// OpenWithAllocatorMetrics is OpenWithMetrics, additionally wiring the
// internal block allocator's own allocation/fragmentation counters to am.
func OpenWithAllocatorMetrics(path string, capacity, blockSize uint64, ttl time.Duration, m Metrics, am allocator.Metrics) (*Cache, error) {
	return openWithMetrics(path, capacity, blockSize, ttl, m, am)
}

func openWithMetrics(path string, capacity, blockSize uint64, ttl time.Duration, m Metrics, am allocator.Metrics) (*Cache, error) {
	if capacity == 0 || blockSize == 0 || capacity%blockSize != 0 {
		return nil, fmt.Errorf("diskcache: capacity must be a non-zero multiple of blockSize")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskcache: open %s: %w", path, err)
	}

	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskcache: truncate: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("diskcache: mmap: %w", err)
	}

	headerBlocks := (uint64(superblockSize) + blockSize - 1) / blockSize
	if headerBlocks == 0 {
		headerBlocks = 1
	}
	totalBlocks := capacity / blockSize

	c := &Cache{
		file:         f,
		data:         data,
		capacity:     capacity,
		blockSize:    blockSize,
		headerBlocks: headerBlocks,
		alloc:        allocator.NewWithMetrics(blockSize, totalBlocks, am),
		index:        make(map[string]DiskLocation),
		ttl:          ttl,
		metrics:      m,
		defragCfg:    DefaultDefragConfig(),
		defragCursor: headerBlocks * blockSize,
	}

	if err := c.recover(); err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}

	return c, nil
}

// recover scans the superblock and every block-aligned slot header in
// order to rebuild the in-memory index and the allocator bitmap. Slots
// whose header fails the magic test are skipped and their block left free
// (so it can be reused); this runs once at startup, before any concurrent
// access, so it is lock-free.
func (c *Cache) recover() error {
	sb, ok := decodeSuperblock(c.data[0:superblockSize])
	if !ok || sb.BlockSize != c.blockSize || sb.TotalBlocks != c.capacity/c.blockSize {
		// Fresh device: write a superblock and reserve the header blocks.
		sb = superblock{Version: formatVersion, BlockSize: c.blockSize, TotalBlocks: c.capacity / c.blockSize, CreatedAt: nowUnixNano()}
		copy(c.data[0:superblockSize], encodeSuperblock(sb))
	}

	if err := c.alloc.MarkUsed(0, c.headerBlocks); err != nil {
		return fmt.Errorf("diskcache: reserving header blocks: %w", err)
	}

	block := c.headerBlocks
	for block < c.alloc.TotalBlocks() {
		offset := block * c.blockSize
		if offset+slotHeaderSize > c.capacity {
			break
		}
		hdr, ok := decodeSlotHeader(c.data[offset : offset+slotHeaderSize])
		if !ok {
			block++
			continue
		}
		if hdr.Flags == flagTrashed {
			// Deleted entry whose blocks weren't yet overwritten by a
			// later Put: skip past its whole payload rather than probing
			// one block at a time, and leave its blocks free for reuse.
			block += blocksFor(uint64(slotHeaderSize)+uint64(hdr.PayloadSize), c.blockSize)
			continue
		}

		payloadBlocks := blocksFor(uint64(slotHeaderSize)+uint64(hdr.PayloadSize), c.blockSize)
		payloadStart := offset + slotHeaderSize
		payloadEnd := payloadStart + uint64(hdr.PayloadSize)
		if payloadEnd > c.capacity {
			block++
			continue
		}

		if checksum(c.data[payloadStart:payloadEnd]) != hdr.Checksum {
			// Corrupt entry: leave its blocks free for reuse, don't index it.
			block += payloadBlocks
			continue
		}

		if err := c.alloc.MarkUsed(offset, payloadBlocks); err != nil {
			block++
			continue
		}

		key := fmt.Sprintf("%x", hdr.Key)
		c.index[key] = DiskLocation{
			Offset:    offset,
			Size:      hdr.PayloadSize,
			Checksum:  hdr.Checksum,
			Timestamp: uint64(hdr.Timestamp),
		}
		block += payloadBlocks
	}

	return nil
}

func blocksFor(totalBytes, blockSize uint64) uint64 {
	return (totalBytes + blockSize - 1) / blockSize
}

// Get returns the payload for key, or ok=false on miss (absent, expired,
// or evicted-due-to-corruption). A checksum mismatch surfaces as a
// sliceerr.Kind Corruption error and evicts the entry.
func (c *Cache) Get(key string) (payload []byte, ok bool, err error) {
	digest := keyDigest(key)
	idxKey := fmt.Sprintf("%x", digest)

	c.mu.Lock()
	loc, present := c.index[idxKey]
	if !present {
		c.mu.Unlock()
		c.recordMiss()
		return nil, false, nil
	}
	if isExpired(int64(loc.Timestamp), c.ttl) {
		c.evictLocked(idxKey, loc)
		c.mu.Unlock()
		c.recordMiss()
		return nil, false, nil
	}

	payloadStart := loc.Offset + slotHeaderSize
	payloadEnd := payloadStart + uint64(loc.Size)
	raw := make([]byte, loc.Size)
	copy(raw, c.data[payloadStart:payloadEnd])
	sum := checksum(raw)
	if sum != loc.Checksum {
		c.evictLocked(idxKey, loc)
		c.mu.Unlock()
		c.recordCorruption()
		return nil, false, sliceerr.ErrCorruption
	}
	c.mu.Unlock()

	c.recordHit()
	return raw, true, nil
}

func (c *Cache) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordHit()
	}
}

func (c *Cache) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordMiss()
	}
}

func (c *Cache) recordCorruption() {
	if c.metrics != nil {
		c.metrics.RecordCorruption()
	}
}

// evictLocked removes an index entry, frees its blocks, and stamps
// flagTrashed into the on-disk slot header so a restart's recover() scan
// does not resurrect the deleted entry before its blocks get overwritten
// by a future Put. Caller holds c.mu.
func (c *Cache) evictLocked(idxKey string, loc DiskLocation) {
	delete(c.index, idxKey)
	payloadBlocks := blocksFor(uint64(slotHeaderSize)+uint64(loc.Size), c.blockSize)
	c.alloc.Free(loc.Offset, payloadBlocks)
	c.data[loc.Offset+slotFlagsOffset] = flagTrashed
}

// Put writes payload under key, replacing any prior entry. On allocator
// exhaustion it attempts one defragmentation pass and retries once before
// surfacing sliceerr.ErrNoSpace.
func (c *Cache) Put(key string, payload []byte) error {
	digest := keyDigest(key)
	idxKey := fmt.Sprintf("%x", digest)
	totalBytes := uint64(slotHeaderSize) + uint64(len(payload))
	blocksNeeded := blocksFor(totalBytes, c.blockSize)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, present := c.index[idxKey]; present {
		oldBlocks := blocksFor(uint64(slotHeaderSize)+uint64(old.Size), c.blockSize)
		c.alloc.Free(old.Offset, oldBlocks)
		delete(c.index, idxKey)
	}

	loc, err := c.alloc.Allocate(blocksNeeded)
	if err != nil {
		c.runDefragLocked()
		loc, err = c.alloc.Allocate(blocksNeeded)
		if err != nil {
			return sliceerr.ErrNoSpace
		}
	}

	sum := checksum(payload)
	ts := nowUnixNano()
	hdr := slotHeader{Key: digest, PayloadSize: uint32(len(payload)), Checksum: sum, Timestamp: ts}

	copy(c.data[loc.Offset:loc.Offset+slotHeaderSize], encodeSlotHeader(hdr))
	copy(c.data[loc.Offset+slotHeaderSize:loc.Offset+slotHeaderSize+uint64(len(payload))], payload)

	c.index[idxKey] = DiskLocation{
		Offset:    loc.Offset,
		Size:      uint32(len(payload)),
		Checksum:  sum,
		Timestamp: uint64(ts),
	}
	return nil
}

// Delete removes key's entry, if present, and frees its blocks.
func (c *Cache) Delete(key string) {
	idxKey := fmt.Sprintf("%x", keyDigest(key))
	c.mu.Lock()
	defer c.mu.Unlock()

	loc, present := c.index[idxKey]
	if !present {
		return
	}
	c.evictLocked(idxKey, loc)
}

// FragmentationRatio delegates to the underlying allocator.
func (c *Cache) FragmentationRatio() float64 {
	return c.alloc.FragmentationRatio()
}

// UpdateDefragConfig replaces the active defragmentation configuration.
func (c *Cache) UpdateDefragConfig(cfg DefragConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defragCfg = cfg
}

// DefragConfigSnapshot returns a copy of the active defragmentation configuration.
func (c *Cache) DefragConfigSnapshot() DefragConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defragCfg
}

// DefragStatsSnapshot returns a copy of cumulative defragmentation stats.
func (c *Cache) DefragStatsSnapshot() DefragStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defragStats
}

// ShouldDefrag reports whether fragmentation and cooldown both permit a run.
func (c *Cache) ShouldDefrag() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shouldDefragLocked()
}

func (c *Cache) shouldDefragLocked() bool {
	if c.alloc.FragmentationRatio() < c.defragCfg.FragmentationThreshold {
		return false
	}
	return time.Since(c.defragStats.LastRunAt) >= c.defragCfg.Cooldown
}

// RunDefrag triggers an online defragmentation pass if the configured
// threshold and cooldown permit it. It is always safe to call; when they do
// not, nothing is moved and DefragStats is left unchanged.
func (c *Cache) RunDefrag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.shouldDefragLocked() {
		return
	}
	c.runDefragLocked()
}

// runDefragLocked compacts live entries toward the front of the device,
// bounded by MaxMoveBytesPerRun. Every call scans from the first data
// block; entries already packed at the front are skipped without being
// moved, so a run cut short by the budget continues on the next call.
// Caller holds c.mu.
func (c *Cache) runDefragLocked() {
	runStart := time.Now()
	type entry struct {
		key string
		loc DiskLocation
	}
	entries := make([]entry, 0, len(c.index))
	for k, loc := range c.index {
		entries = append(entries, entry{k, loc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].loc.Offset < entries[j].loc.Offset })

	cursor := c.headerBlocks * c.blockSize
	var movedThisRun uint64
	var compacted uint64

	for _, e := range entries {
		blocks := blocksFor(uint64(slotHeaderSize)+uint64(e.loc.Size), c.blockSize)
		span := blocks * c.blockSize

		if e.loc.Offset < cursor {
			// Overlapping bookkeeping artifact; skip, scan continues.
			continue
		}
		if e.loc.Offset == cursor {
			cursor += span
			continue
		}
		if movedThisRun >= c.defragCfg.MaxMoveBytesPerRun {
			break
		}

		// Move entry down to cursor.
		copy(c.data[cursor:cursor+span], c.data[e.loc.Offset:e.loc.Offset+span])
		c.alloc.Free(e.loc.Offset, blocks)
		_ = c.alloc.MarkUsed(cursor, blocks)

		newLoc := e.loc
		newLoc.Offset = cursor
		c.index[e.key] = newLoc

		movedThisRun += span
		compacted++
		cursor += span
	}

	c.defragStats.TotalRuns++
	c.defragStats.BytesMoved += movedThisRun
	c.defragStats.BlocksCompacted += compacted
	c.defragStats.LastRunAt = time.Now()

	if c.metrics != nil {
		c.metrics.RecordDefragRun(movedThisRun, c.defragStats.LastRunAt.Sub(runStart))
	}
}

// Close unmaps and closes the backing file.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := unix.Munmap(c.data); err != nil {
		return err
	}
	return c.file.Close()
}

func nowUnixNano() int64 {
	return time.Now().UnixNano()
}
