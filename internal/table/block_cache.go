package table

import (
	"github.com/aalhour/blocktable/internal/cache"
)

// BlockCacheOptions configures the two independent cache tiers a reader may
// use: an uncompressed-block cache (hot path, ready to parse) and a
// compressed-block cache (saves I/O, costs a decompression on every hit).
// Either or both may be nil, in which case that tier is a guaranteed miss.
type BlockCacheOptions struct {
	Uncompressed cache.Cache
	Compressed   cache.Cache

	// FileNumber identifies this table's blocks within the shared caches.
	// This package has no allocator for file numbers; the caller supplies
	// one, also for a bare Reader opened without a TableCache.
	FileNumber uint64
}

// blockCache adapts the two-tier cache.Cache pair to the narrower
// offset-keyed contract the data-block iterator factory and fixed-size
// filter reader need: Lookup, Insert, Release by block offset.
type blockCache struct {
	opts BlockCacheOptions
}

func newBlockCache(opts BlockCacheOptions) *blockCache {
	return &blockCache{opts: opts}
}

func (b *blockCache) key(offset uint64) cache.CacheKey {
	return cache.CacheKey{FileNumber: b.opts.FileNumber, BlockOffset: offset}
}

// lookupUncompressed returns a pinned handle and its decompressed bytes, or
// (nil, nil, false) on a miss. The caller must Release the handle exactly
// once when done.
func (b *blockCache) lookupUncompressed(offset uint64) (*cache.Handle, []byte, bool) {
	if b.opts.Uncompressed == nil {
		return nil, nil, false
	}
	h := b.opts.Uncompressed.Lookup(b.key(offset))
	if h == nil {
		return nil, nil, false
	}
	return h, h.Value(), true
}

// lookupCompressed is lookupUncompressed for the compressed tier; its value
// is still-compressed bytes that the caller must decompress before use.
func (b *blockCache) lookupCompressed(offset uint64) (*cache.Handle, []byte, bool) {
	if b.opts.Compressed == nil {
		return nil, nil, false
	}
	h := b.opts.Compressed.Lookup(b.key(offset))
	if h == nil {
		return nil, nil, false
	}
	return h, h.Value(), true
}

// insertUncompressed admits decompressed block bytes into the uncompressed
// tier, if configured. A nil return means the tier is absent or declined
// the insert (never treated as an error by callers).
func (b *blockCache) insertUncompressed(offset uint64, data []byte) *cache.Handle {
	if b.opts.Uncompressed == nil {
		return nil
	}
	return b.opts.Uncompressed.InsertWithDeleter(b.key(offset), data, uint64(len(data)), 0, nil)
}

// insertCompressed admits still-compressed block bytes into the compressed
// tier, if configured.
func (b *blockCache) insertCompressed(offset uint64, data []byte) *cache.Handle {
	if b.opts.Compressed == nil {
		return nil
	}
	return b.opts.Compressed.InsertWithDeleter(b.key(offset), data, uint64(len(data)), 0, nil)
}

// release is a nil-safe Release on whichever tier owns handle.
func (b *blockCache) release(tier cache.Cache, handle *cache.Handle) {
	if tier == nil || handle == nil {
		return
	}
	tier.Release(handle)
}

// keyInCache reports whether offset is currently resident in the
// uncompressed tier, without affecting LRU order beyond the Lookup itself.
// Exercised by tests under the name TEST_KeyInCache in the original
// implementation this reader is modeled on.
func (b *blockCache) keyInCache(offset uint64) bool {
	h, _, ok := b.lookupUncompressed(offset)
	if ok {
		b.release(b.opts.Uncompressed, h)
	}
	return ok
}
