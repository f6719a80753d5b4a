package table

import (
	"errors"

	"github.com/aalhour/blocktable/internal/block"
	"github.com/aalhour/blocktable/internal/dbformat"
)

// ErrInvalidRange indicates Prefetch was called with begin > end.
var ErrInvalidRange = errors.New("table: invalid range (begin > end)")

// Prefetch warms the cache for the data blocks covering [begin, end), plus
// one trailing boundary block past end so a scan that crosses the boundary
// finds it already resident. A nil begin starts at the first block; a nil
// end runs to the last block.
//
// Reference: RocksDB v10.7.5 table/block_based/block_based_table_reader.cc
// BlockBasedTable::Prefetch.
func (r *Reader) Prefetch(opts ReadOptions, begin, end []byte) error {
	if begin != nil && end != nil && dbformat.CompareInternalKeys(begin, end) > 0 {
		return ErrInvalidRange
	}

	index := r.indexReaderFor().NewIterator(true)
	if begin != nil {
		index.Seek(begin)
	} else {
		index.SeekToFirst()
	}

	opts.FillCache = true
	loadedBoundary := false

	for index.Valid() {
		handle, _, derr := block.DecodeHandle(index.Value())
		if derr != nil {
			return derr
		}

		pastEnd := end != nil && dbformat.CompareInternalKeys(index.Key(), end) >= 0
		if pastEnd && loadedBoundary {
			break
		}

		_, cleanup, err := r.resolveDataBlock(r.blockCache, opts, handle)
		if err != nil {
			return err
		}
		cleanup()

		if pastEnd {
			loadedBoundary = true
		}

		index.Next()
	}

	return index.Error()
}
