package table

import (
	"errors"

	"github.com/aalhour/blocktable/internal/block"
	"github.com/aalhour/blocktable/internal/compression"
)

// ReadTier restricts how far a read is allowed to reach for a block.
type ReadTier int

const (
	// ReadAllTier permits file I/O.
	ReadAllTier ReadTier = iota
	// BlockCacheTier permits only cache hits; a miss is Incomplete, never a
	// file read.
	BlockCacheTier
)

// ReadOptions controls a single query's interaction with the block caches
// and I/O tiers. The zero value reads from the file on every miss and fills
// neither cache tier, since FillCache is false.
type ReadOptions struct {
	ReadTier        ReadTier
	FillCache       bool
	TotalOrderSeek  bool
	UseBloomOnScan  bool
	VerifyChecksums bool
	QueryID         uint64
}

// DefaultReadOptions returns options appropriate for a typical point lookup
// or scan: full I/O allowed, both cache tiers filled.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{FillCache: true}
}

// ErrIncomplete indicates a read under BlockCacheTier could not be
// satisfied from cache and would have required file I/O.
var ErrIncomplete = errors.New("table: incomplete (block not in cache, no_io requested)")

// dataBlockCleanup releases whatever resource backs a resolved block: a
// cache handle on the tier it came from, or nothing for a heap block (the
// garbage collector reclaims that).
type dataBlockCleanup func()

// resolveDataBlock implements the cache-then-file resolution order: try the
// uncompressed tier, then the compressed tier (decompressing on hit and
// optionally promoting into the uncompressed tier), then the file itself.
//
// Reference: RocksDB v10.7.5 table/block_based/block_based_table_reader.cc
// BlockBasedTable::RetrieveBlock / GetDataBlockFromCache / PutDataBlockToCache.
func (r *Reader) resolveDataBlock(bc *blockCache, opts ReadOptions, handle block.Handle) (*block.Block, dataBlockCleanup, error) {
	noop := func() {}

	if bc != nil {
		if h, data, ok := bc.lookupUncompressed(handle.Offset); ok {
			blk, err := block.NewBlock(data)
			if err != nil {
				bc.release(bc.opts.Uncompressed, h)
				return nil, noop, err
			}
			return blk, func() { bc.release(bc.opts.Uncompressed, h) }, nil
		}

		if h, compressed, ok := bc.lookupCompressed(handle.Offset); ok {
			decompressed, err := r.decompressBlockData(compressed, compressedTrailerType(r, handle))
			bc.release(bc.opts.Compressed, h)
			if err != nil {
				return nil, noop, err
			}
			blk, err := block.NewBlock(decompressed)
			if err != nil {
				return nil, noop, err
			}
			if opts.FillCache {
				if nh := bc.insertUncompressed(handle.Offset, decompressed); nh != nil {
					return blk, func() { bc.release(bc.opts.Uncompressed, nh) }, nil
				}
			}
			return blk, noop, nil
		}
	}

	if opts.ReadTier == BlockCacheTier {
		return nil, noop, ErrIncomplete
	}

	rawData, compType, err := r.readBlockChecksummed(handle)
	if err != nil {
		return nil, noop, err
	}

	if bc != nil && opts.FillCache && compType != 0 {
		bc.insertCompressed(handle.Offset, append([]byte(nil), rawData...))
	}

	decompressed, err := r.decompressBlockData(rawData, compType)
	if err != nil {
		return nil, noop, err
	}

	blk, err := block.NewBlock(decompressed)
	if err != nil {
		return nil, noop, err
	}

	if bc != nil && opts.FillCache {
		if nh := bc.insertUncompressed(handle.Offset, decompressed); nh != nil {
			return blk, func() { bc.release(bc.opts.Uncompressed, nh) }, nil
		}
	}

	return blk, noop, nil
}

// compressedTrailerType re-derives the compression tag for bytes pulled back
// out of the compressed cache tier, since the cache itself only stores the
// payload. The tag travels alongside the cached bytes in a real RocksDB
// build (as part of the cached Block object); here it is cheaply re-read
// from the file's trailer byte, which is a single extra byte read rather
// than re-reading and re-verifying the whole block.
func compressedTrailerType(r *Reader, handle block.Handle) compression.Type {
	trailerSize := int(r.footer.BlockTrailerSize)
	if trailerSize == 0 {
		return compression.NoCompression
	}
	tag := make([]byte, 1)
	if _, err := r.file.ReadAt(tag, int64(handle.Offset+handle.Size)); err != nil {
		return compression.NoCompression
	}
	return compression.Type(tag[0])
}

// NewDataBlockIterator resolves handle to a block iterator via the cache
// factory above, and returns the iterator plus a cleanup the caller must
// invoke exactly once when finished with it (cache release, or a no-op for
// a heap-owned block).
func NewDataBlockIterator(r *Reader, bc *blockCache, opts ReadOptions, handle block.Handle) (*block.Iterator, dataBlockCleanup, error) {
	blk, cleanup, err := r.resolveDataBlock(bc, opts, handle)
	if err != nil {
		return nil, func() {}, err
	}
	return blk.NewIterator(), cleanup, nil
}
