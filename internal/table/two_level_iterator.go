package table

import (
	"github.com/aalhour/blocktable/internal/block"
	"github.com/aalhour/blocktable/internal/iterator"
)

// twoLevelIterator composes an IndexReader's iterator (the primary cursor,
// over block handles) with a lazily-built data-block iterator (the
// secondary cursor, over key-value entries). Every move of the primary
// cursor discards the old secondary iterator and its cleanup, then builds
// the new one for the block the primary cursor now points to.
//
// Reference: RocksDB v10.7.5 table/two_level_iterator.cc.
type twoLevelIterator struct {
	reader *Reader
	cache  *blockCache
	opts   ReadOptions

	index iterator.Iterator

	data        *block.Iterator
	dataCleanup dataBlockCleanup
	err         error
}

func newTwoLevelIterator(r *Reader, bc *blockCache, opts ReadOptions, index iterator.Iterator) *twoLevelIterator {
	return &twoLevelIterator{reader: r, cache: bc, opts: opts, index: index}
}

func (it *twoLevelIterator) releaseData() {
	if it.dataCleanup != nil {
		it.dataCleanup()
	}
	it.data = nil
	it.dataCleanup = nil
}

// setData builds the secondary iterator for whatever block handle the
// index cursor currently points to. If the index cursor is invalid, the
// secondary iterator is cleared and the two-level iterator becomes invalid
// too.
func (it *twoLevelIterator) setData() {
	it.releaseData()
	if !it.index.Valid() {
		return
	}
	handle, _, err := block.DecodeHandle(it.index.Value())
	if err != nil {
		it.err = err
		return
	}
	data, cleanup, err := NewDataBlockIterator(it.reader, it.cache, it.opts, handle)
	if err != nil {
		it.err = err
		return
	}
	it.data = data
	it.dataCleanup = cleanup
}

// skipEmptyDataBlocksForward advances the index cursor past any data block
// that (legitimately, e.g. range-tombstone-only) produced zero entries.
func (it *twoLevelIterator) skipEmptyDataBlocksForward() {
	for it.data == nil || !it.data.Valid() {
		if it.err != nil {
			return
		}
		if !it.index.Valid() {
			it.releaseData()
			return
		}
		it.index.Next()
		it.setData()
		if it.data != nil {
			it.data.SeekToFirst()
		}
	}
}

func (it *twoLevelIterator) skipEmptyDataBlocksBackward() {
	for it.data == nil || !it.data.Valid() {
		if it.err != nil {
			return
		}
		if !it.index.Valid() {
			it.releaseData()
			return
		}
		it.index.Prev()
		it.setData()
		if it.data != nil {
			it.data.SeekToLast()
		}
	}
}

func (it *twoLevelIterator) Valid() bool {
	return it.data != nil && it.data.Valid()
}

func (it *twoLevelIterator) Key() []byte {
	return it.data.Key()
}

func (it *twoLevelIterator) Value() []byte {
	return it.data.Value()
}

func (it *twoLevelIterator) SeekToFirst() {
	it.index.SeekToFirst()
	it.setData()
	if it.data != nil {
		it.data.SeekToFirst()
	}
	it.skipEmptyDataBlocksForward()
}

func (it *twoLevelIterator) SeekToLast() {
	it.index.SeekToLast()
	it.setData()
	if it.data != nil {
		it.data.SeekToLast()
	}
	it.skipEmptyDataBlocksBackward()
}

func (it *twoLevelIterator) Seek(target []byte) {
	it.index.Seek(target)
	it.setData()
	if it.data != nil {
		it.data.Seek(target)
	}
	it.skipEmptyDataBlocksForward()
}

func (it *twoLevelIterator) Next() {
	it.data.Next()
	it.skipEmptyDataBlocksForward()
}

func (it *twoLevelIterator) Prev() {
	it.data.Prev()
	it.skipEmptyDataBlocksBackward()
}

func (it *twoLevelIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	if err := it.index.Error(); err != nil {
		return err
	}
	if it.data != nil {
		return it.data.Error()
	}
	return nil
}

// Close releases whatever data-block resource is currently held. Callers
// that obtain a twoLevelIterator through Reader.NewCachedIterator must call
// Close when finished scanning.
func (it *twoLevelIterator) Close() {
	it.releaseData()
}
