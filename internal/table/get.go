package table

import (
	"errors"

	"github.com/aalhour/blocktable/internal/block"
	"github.com/aalhour/blocktable/internal/dbformat"
)

// GetContext receives candidate values during Get, in index order, and
// decides when the search is done. SaveValue returning true ends the scan.
//
// Reference: RocksDB v10.7.5 table/get_context.h (trimmed to the subset this
// reader needs: it has no merge operator or snapshot sequence filtering).
type GetContext interface {
	SaveValue(key *dbformat.ParsedInternalKey, value []byte) (done bool)
	MarkKeyMayExist()
}

// SingleValueGetContext captures the first value it sees for the target user
// key, which is the common point-lookup case against a single SST.
type SingleValueGetContext struct {
	userKey     []byte
	Found       bool
	Value       []byte
	KeyMayExist bool
}

// NewSingleValueGetContext returns a GetContext that stops at the first
// entry whose user key equals userKey.
func NewSingleValueGetContext(userKey []byte) *SingleValueGetContext {
	return &SingleValueGetContext{userKey: userKey}
}

func (c *SingleValueGetContext) SaveValue(key *dbformat.ParsedInternalKey, value []byte) bool {
	if dbformat.BytewiseCompare(key.UserKey, c.userKey) != 0 {
		return true // past the target key under the comparator's order; stop
	}
	c.Found = true
	c.Value = append([]byte(nil), value...)
	return true
}

func (c *SingleValueGetContext) MarkKeyMayExist() {
	c.KeyMayExist = true
}

// filterReaderFor lazily builds the FilterReader matching this table's
// on-disk filter shape. Returns (nil, nil) if the table has no filter.
func (r *Reader) filterReaderFor() (FilterReader, error) {
	if r.filterReaderGeneric != nil {
		return r.filterReaderGeneric, nil
	}
	if r.filterHandle.IsNull() {
		return nil, nil
	}

	switch r.filterType {
	case FilterTypeFull:
		if r.filterReader == nil {
			return nil, nil
		}
		r.filterReaderGeneric = &fullFilterReader{bloom: r.filterReader, transform: IdentityKeyTransformer}

	case FilterTypeBlockBased:
		data, err := r.ReadRawBlockData(r.filterHandle)
		if err != nil {
			return nil, err
		}
		offsets, err := r.dataBlockOffsets()
		if err != nil {
			return nil, err
		}
		fr, err := NewBlockBasedFilterReader(data, offsets, IdentityKeyTransformer)
		if err != nil {
			return nil, err
		}
		r.filterReaderGeneric = fr

	case FilterTypeFixedSize:
		blk, err := r.readBlock(r.filterHandle)
		if err != nil {
			return nil, err
		}
		r.filterReaderGeneric = NewFixedSizeFilterReader(blk, r, r.blockCache, IdentityKeyTransformer)

	default:
		return nil, nil
	}

	return r.filterReaderGeneric, nil
}

// dataBlockOffsets walks the index once and returns the file offset of every
// data block, in index order. Used to key a block-based filter's per-block
// Bloom filters by the offsets they were built against.
func (r *Reader) dataBlockOffsets() ([]uint64, error) {
	var offsets []uint64

	var valueAt func() []byte
	var valid func() bool
	var next func()
	var seekFirst func()

	if r.indexUsesValueDeltaEncoding {
		it := NewIndexBlockIterator(r.indexBlock.Data(), r.indexBlock.DataEnd())
		seekFirst = it.SeekToFirst
		valid = it.Valid
		valueAt = it.Value
		next = it.Next
	} else {
		it := r.indexBlock.NewIterator()
		seekFirst = it.SeekToFirst
		valid = it.Valid
		valueAt = it.Value
		next = it.Next
	}

	for seekFirst(); valid(); next() {
		handle, _, err := block.DecodeHandle(valueAt())
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, handle.Offset)
	}
	return offsets, nil
}

// nonBlockBasedFilterKeyMayMatch applies a full or fixed-size filter's
// whole-key and (when configured) prefix probes together: a miss on either
// enabled probe is a definitive miss. Block-based filters aren't routed
// through here since they're keyed by data-block offset rather than by
// key alone; Get applies those per index entry instead.
//
// Reference: RocksDB v10.7.5 BlockBasedTable::NonBlockBasedFilterKeyMayMatch.
func (r *Reader) nonBlockBasedFilterKeyMayMatch(fr FilterReader, userKey []byte) bool {
	props, _ := r.Properties()
	wholeKeyFiltering := props == nil || props.WholeKeyFiltering
	prefixFiltering := props != nil && props.PrefixFiltering

	if wholeKeyFiltering && !fr.KeyMayMatch(userKey) {
		return false
	}

	extractor := r.options.PrefixExtractor
	if prefixFiltering && extractor != nil && extractor.InDomain(userKey) {
		if !fr.PrefixMayMatch(extractor.Transform(userKey)) {
			return false
		}
	}

	return true
}

// Get resolves a single internal key lookup against this table: filter probe,
// index seek, then a linear scan of matching data-block entries via ctx.
// Data blocks are resolved through the two-tier block cache the same way
// NewCachedIterator does; under opts.ReadTier == BlockCacheTier, a block
// that isn't cache-resident marks ctx.MarkKeyMayExist and returns
// ErrIncomplete instead of reading the file. skipFilters bypasses both the
// whole-table and per-block filter probes, for callers that already know a
// filter check would be redundant (e.g. a caller that just built the table).
//
// Reference: RocksDB v10.7.5 table/block_based/block_based_table_reader.cc
// BlockBasedTable::Get.
func (r *Reader) Get(opts ReadOptions, internalKey []byte, ctx GetContext, skipFilters bool) error {
	parsed, err := dbformat.ParseInternalKey(internalKey)
	if err != nil {
		return err
	}

	var fr FilterReader
	if !skipFilters {
		fr, err = r.filterReaderFor()
		if err != nil {
			return err
		}
	}

	if fr != nil && r.filterType != FilterTypeBlockBased {
		if !r.nonBlockBasedFilterKeyMayMatch(fr, parsed.UserKey) {
			return nil // definitive miss; "filter useful"
		}
	}

	totalOrderSeek := opts.TotalOrderSeek || r.filterType != FilterTypeFixedSize
	index := r.indexReaderFor().NewIterator(totalOrderSeek)
	two := newTwoLevelIterator(r, r.blockCache, opts, index)
	defer two.Close()

	two.Seek(internalKey)
	for two.Valid() {
		if !skipFilters && r.filterType == FilterTypeBlockBased && fr != nil {
			// The block-based filter covers exactly the block this index
			// entry points to; a miss here means no later block can
			// contain the key either, given Seek's ordering guarantee.
			handle, _, derr := block.DecodeHandle(index.Value())
			if derr == nil && !fr.KeyMayMatchBlock(parsed.UserKey, handle.Offset) {
				return nil
			}
		}

		pk, perr := dbformat.ParseInternalKey(two.Key())
		if perr != nil {
			return perr
		}
		if ctx.SaveValue(pk, two.Value()) {
			return nil
		}
		two.Next()
	}

	if gerr := two.Error(); gerr != nil {
		if errors.Is(gerr, ErrIncomplete) {
			ctx.MarkKeyMayExist()
		}
		return gerr
	}
	return nil
}

// PrefixMayMatch answers whether any key with the given prefix may be
// present in this table, without performing any data-block file I/O: the
// underlying data-block resolution is forced to ReadTier: BlockCacheTier
// regardless of what a caller might otherwise configure, so a cache miss
// is reported conservatively (true) rather than read from the file. The
// filter is probed only when the table has prefix filtering and the reader's
// PrefixExtractor applies to prefix, since otherwise it holds whole keys.
//
// Reference: RocksDB v10.7.5 BlockBasedTable::PrefixMayMatch /
// PrefixExtractorChanged.
func (r *Reader) PrefixMayMatch(prefix []byte) bool {
	props, _ := r.Properties()
	extractor := r.options.PrefixExtractor
	usePrefixFilter := props != nil && props.PrefixFiltering && extractor != nil && extractor.InDomain(prefix)
	if fr, err := r.filterReaderFor(); usePrefixFilter && err == nil && fr != nil {
		if !fr.PrefixMayMatch(extractor.Transform(prefix)) {
			return false
		}
	}

	if r.indexBlock == nil {
		return true
	}

	syntheticKey := []byte(dbformat.NewInternalKey(prefix, dbformat.MaxSequenceNumber, dbformat.TypeValue))

	opts := DefaultReadOptions()
	opts.ReadTier = BlockCacheTier

	totalOrderSeek := r.filterType != FilterTypeFixedSize
	index := r.indexReaderFor().NewIterator(totalOrderSeek)
	two := newTwoLevelIterator(r, r.blockCache, opts, index)
	defer two.Close()

	two.Seek(syntheticKey)
	if errors.Is(two.Error(), ErrIncomplete) {
		// The data block that would confirm or rule out a match isn't
		// cache-resident; the only conservative answer without reading it
		// is true.
		return true
	}
	if !two.Valid() {
		// Exhausted the index: genuinely past the end. The block we'd
		// land in doesn't exist, but PrefixMayMatch reports only what the
		// filter already said, so this is also a conservative true.
		return true
	}

	userKey := dbformat.ExtractUserKey(two.Key())
	if hasPrefix(userKey, prefix) {
		return true
	}

	if r.filterType == FilterTypeBlockBased && usePrefixFilter {
		if fr, err := r.filterReaderFor(); err == nil && fr != nil {
			handle, _, derr := block.DecodeHandle(index.Value())
			if derr == nil {
				return fr.KeyMayMatchBlock(extractor.Transform(prefix), handle.Offset)
			}
		}
	}

	return true
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
