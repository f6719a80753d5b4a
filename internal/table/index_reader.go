package table

import (
	"github.com/aalhour/blocktable/internal/block"
	"github.com/aalhour/blocktable/internal/checksum"
	"github.com/aalhour/blocktable/internal/dbformat"
	"github.com/aalhour/blocktable/internal/iterator"
	"github.com/aalhour/blocktable/internal/logging"
)

// IndexReader produces iterators over a table's data-block index. Two
// variants exist: a plain binary-search reader, and a hash-augmented reader
// that can jump straight to a restart range for prefix-style lookups.
//
// Reference: RocksDB v10.7.5 table/block_based/index_reader_common.h and
// the binary_search_index_reader.h / hash_index_reader.h variants.
type IndexReader interface {
	// NewIterator returns an iterator over the index. When totalOrderSeek is
	// true, or the reader has no hash auxiliary, Seek performs an ordinary
	// binary search; otherwise it may use the hash shortcut.
	NewIterator(totalOrderSeek bool) iterator.Iterator

	// ApproximateMemoryUsage estimates the reader's resident memory, for
	// cache-charge accounting.
	ApproximateMemoryUsage() uint64
}

// binarySearchIndexReader is the default IndexReader: a thin wrapper over a
// block.Block that always binary-searches.
type binarySearchIndexReader struct {
	blk *block.Block
}

// NewBinarySearchIndexReader wraps an already-read index block.
func NewBinarySearchIndexReader(blk *block.Block) IndexReader {
	return &binarySearchIndexReader{blk: blk}
}

func (r *binarySearchIndexReader) NewIterator(bool) iterator.Iterator {
	return r.blk.NewIterator()
}

func (r *binarySearchIndexReader) ApproximateMemoryUsage() uint64 {
	return uint64(len(r.blk.Data()))
}

// restartRange is the half-open range of restart-point indexes a hashed
// prefix maps to within the underlying index block.
type restartRange struct {
	first, last int
}

// empty reports whether the range carries no restart points, which happens
// only for an allow-collision bucket nothing ever hashed into.
func (rr restartRange) empty() bool {
	return rr.last <= rr.first
}

// union widens rr to also cover other, used when two distinct prefixes land
// in the same allow-collision bucket: the bucket must cover the restart
// points of every prefix that hashes into it, which is what makes the
// structure probabilistic rather than exact (a Seek under a colliding
// bucket may scan restart points that belong to a different prefix).
func (rr restartRange) union(other restartRange) restartRange {
	if rr.empty() {
		return other
	}
	if other.empty() {
		return rr
	}
	out := rr
	if other.first < out.first {
		out.first = other.first
	}
	if other.last > out.last {
		out.last = other.last
	}
	return out
}

// hashIndexReader augments a binary-search index with a prefix->restart
// range lookup built from the rocksdb.hashindex.prefixes and
// rocksdb.hashindex.prefixesmetadata meta-blocks. Construction can fail
// (malformed metadata); callers are expected to fall back to
// binarySearchIndexReader rather than treat that as fatal.
//
// Two lookup structures are supported: an exact map (one entry per
// distinct prefix) and, when hash_index_allow_collision is set, a denser
// fixed-size bucket array keyed by a hash of the prefix. The bucket array
// uses less memory per prefix but is probabilistic: two prefixes that hash
// to the same bucket share its restart range, so a Seek under a colliding
// bucket may scan restart points that turn out to belong to the other
// prefix before reaching (or ruling out) the target.
//
// Reference: RocksDB v10.7.5 table/block_based/hash_index_reader.h,
// BlockHashIndex (exact) and the allow_collision bucket variant built over
// util/hash.h.
type hashIndexReader struct {
	inner      *binarySearchIndexReader
	extractor  PrefixExtractor
	exact      map[string]restartRange
	buckets    []restartRange
	numRestart int
}

// NewHashIndexReader builds a hash-augmented index reader from the index
// block plus its two auxiliary meta-blocks. On any parse failure it logs a
// warning and returns a plain binarySearchIndexReader instead of an error,
// matching the "degradation, not error" rule for hash-index construction.
// When allowCollision is true, the prefix->restart-range lookup is folded
// into a fixed-size bucket array instead of an exact per-prefix map.
func NewHashIndexReader(blk *block.Block, prefixesBlock, prefixesMetaBlock []byte, extractor PrefixExtractor, allowCollision bool, logger logging.Logger) IndexReader {
	logger = logging.OrDefault(logger)
	inner := &binarySearchIndexReader{blk: blk}

	entries, err := parseHashIndexAuxiliaries(prefixesBlock, prefixesMetaBlock)
	if err != nil {
		logger.Warnf("%shash index construction failed (%v), falling back to binary search", logging.NSTable, err)
		return inner
	}

	if extractor == nil {
		extractor = NewNoopPrefixExtractor()
	}

	r := &hashIndexReader{inner: inner, extractor: extractor, numRestart: blk.NumRestarts()}
	if allowCollision {
		r.buckets = buildCollisionBuckets(entries)
	} else {
		r.exact = make(map[string]restartRange, len(entries))
		for _, e := range entries {
			r.exact[e.prefix] = e.restartRange
		}
	}
	return r
}

// hashIndexEntry is one decoded (prefix, restart range) pair, in on-disk
// order.
type hashIndexEntry struct {
	prefix string
	restartRange
}

// buildCollisionBuckets folds entries into a fixed-size array of size
// len(entries) (one bucket per prefix on average), merging the restart
// ranges of any prefixes that hash to the same bucket. This is the "denser
// alternative structure with probabilistic membership" the hash-augmented
// index offers as an alternative to the exact map: a bucket array costs a
// fixed 16 bytes per prefix rather than 16 bytes plus the prefix's own
// byte length, at the cost of occasional bucket collisions widening the
// scanned restart range.
func buildCollisionBuckets(entries []hashIndexEntry) []restartRange {
	numBuckets := len(entries)
	if numBuckets == 0 {
		numBuckets = 1
	}
	buckets := make([]restartRange, numBuckets)
	for _, e := range entries {
		idx := int(checksum.XXH3_64bits([]byte(e.prefix)) % uint64(numBuckets))
		buckets[idx] = buckets[idx].union(e.restartRange)
	}
	return buckets
}

// parseHashIndexAuxiliaries decodes RocksDB's hash-index auxiliary blocks.
//
// prefixesMetaBlock is a sequence of (prefix_length: varint32, num_blocks: varint32)
// records; prefixesBlock is the concatenation of the actual prefix bytes in
// the same order, each followed immediately by the next. Each metadata
// record's num_blocks gives how many consecutive index restart entries
// share that prefix; we reconstruct restart ranges by walking both in
// lock-step.
//
// Reference: RocksDB table/block_based/block_based_table_reader.cc
// BlockBasedTable::PrefetchIndexAndFilterBlocks / HashIndexReader::Create.
func parseHashIndexAuxiliaries(prefixesBlock, prefixesMetaBlock []byte) ([]hashIndexEntry, error) {
	var entries []hashIndexEntry

	metaPos := 0
	dataPos := 0
	restartCursor := 0

	for metaPos < len(prefixesMetaBlock) {
		prefixLen, n1 := decodeVarint32FromBytes(prefixesMetaBlock[metaPos:])
		if n1 == 0 {
			return nil, ErrInvalidSST
		}
		metaPos += n1

		numBlocks, n2 := decodeVarint32FromBytes(prefixesMetaBlock[metaPos:])
		if n2 == 0 {
			return nil, ErrInvalidSST
		}
		metaPos += n2

		if dataPos+int(prefixLen) > len(prefixesBlock) {
			return nil, ErrInvalidSST
		}
		prefix := string(prefixesBlock[dataPos : dataPos+int(prefixLen)])
		dataPos += int(prefixLen)

		entries = append(entries, hashIndexEntry{
			prefix:       prefix,
			restartRange: restartRange{first: restartCursor, last: restartCursor + int(numBlocks)},
		})
		restartCursor += int(numBlocks)
	}

	return entries, nil
}

func (r *hashIndexReader) NewIterator(totalOrderSeek bool) iterator.Iterator {
	if totalOrderSeek {
		return r.inner.NewIterator(true)
	}
	return &hashIndexIterator{
		binIter:    r.inner.blk.NewIterator(),
		extractor:  r.extractor,
		exact:      r.exact,
		buckets:    r.buckets,
		numRestart: r.numRestart,
	}
}

func (r *hashIndexReader) ApproximateMemoryUsage() uint64 {
	usage := r.inner.ApproximateMemoryUsage()
	for k := range r.exact {
		usage += uint64(len(k)) + 16
	}
	usage += uint64(len(r.buckets)) * 16
	return usage
}

// hashIndexIterator wraps a plain block iterator, restricting Seek's initial
// binary-search to the restart range a key's prefix maps to, when known.
// Falling outside the lookup (key not in the extractor's domain, unknown
// prefix under the exact map) falls back to the wrapped iterator's own
// ordinary Seek over the whole block.
type hashIndexIterator struct {
	binIter    *block.Iterator
	extractor  PrefixExtractor
	exact      map[string]restartRange
	buckets    []restartRange
	numRestart int
}

func (it *hashIndexIterator) Valid() bool   { return it.binIter.Valid() }
func (it *hashIndexIterator) Key() []byte   { return it.binIter.Key() }
func (it *hashIndexIterator) Value() []byte { return it.binIter.Value() }
func (it *hashIndexIterator) SeekToFirst()  { it.binIter.SeekToFirst() }
func (it *hashIndexIterator) SeekToLast()   { it.binIter.SeekToLast() }
func (it *hashIndexIterator) Next()         { it.binIter.Next() }
func (it *hashIndexIterator) Prev()         { it.binIter.Prev() }
func (it *hashIndexIterator) Error() error  { return it.binIter.Error() }

// Seek extracts target's prefix and, when it maps to a known restart
// range, constrains the underlying binary search to that range instead of
// the whole index block.
func (it *hashIndexIterator) Seek(target []byte) {
	rr, ok := it.lookup(target)
	if !ok {
		it.binIter.Seek(target)
		return
	}
	last := rr.last - 1
	if last >= it.numRestart {
		last = it.numRestart - 1
	}
	it.binIter.SeekWithinRestartRange(rr.first, last, target)
}

func (it *hashIndexIterator) lookup(target []byte) (restartRange, bool) {
	if it.extractor == nil || (it.exact == nil && it.buckets == nil) {
		return restartRange{}, false
	}

	userKey := dbformat.ExtractUserKey(target)
	if !it.extractor.InDomain(userKey) {
		return restartRange{}, false
	}
	prefix := it.extractor.Transform(userKey)

	if it.buckets != nil {
		if len(it.buckets) == 0 {
			return restartRange{}, false
		}
		idx := int(checksum.XXH3_64bits(prefix) % uint64(len(it.buckets)))
		rr := it.buckets[idx]
		if rr.empty() {
			return restartRange{}, false
		}
		return rr, true
	}

	rr, ok := it.exact[string(prefix)]
	return rr, ok
}
