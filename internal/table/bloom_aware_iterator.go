package table

import "github.com/aalhour/blocktable/internal/dbformat"

// bloomFilterAwareIterator wraps a twoLevelIterator and applies the
// fixed-size filter's zero-I/O short-circuit on Seek: if the filter index
// has no entry covering the seek target's user key, the iterator is
// positioned invalid without ever touching the index or a data block.
//
// Reference: RocksDB v10.7.5's PartitionedIndexIterator / partitioned-filter
// interplay in table/block_based/partitioned_index_iterator.cc, adapted
// here as a thin decorator rather than folding the check into the index
// iterator itself.
type bloomFilterAwareIterator struct {
	inner  *twoLevelIterator
	filter FilterReader
	valid  bool
}

func newBloomFilterAwareIterator(inner *twoLevelIterator, filter FilterReader) *bloomFilterAwareIterator {
	return &bloomFilterAwareIterator{inner: inner, filter: filter}
}

func (it *bloomFilterAwareIterator) Valid() bool {
	return it.valid && it.inner.Valid()
}

func (it *bloomFilterAwareIterator) Key() []byte   { return it.inner.Key() }
func (it *bloomFilterAwareIterator) Value() []byte { return it.inner.Value() }

func (it *bloomFilterAwareIterator) SeekToFirst() {
	it.valid = true
	it.inner.SeekToFirst()
}

func (it *bloomFilterAwareIterator) SeekToLast() {
	it.valid = true
	it.inner.SeekToLast()
}

func (it *bloomFilterAwareIterator) Seek(target []byte) {
	userKey := dbformat.ExtractUserKey(target)
	if it.filter != nil && !it.filter.PrefixMayMatch(userKey) {
		it.valid = false
		it.inner.releaseData()
		return
	}
	it.valid = true
	it.inner.Seek(target)
}

func (it *bloomFilterAwareIterator) Next() {
	it.inner.Next()
}

func (it *bloomFilterAwareIterator) Prev() {
	it.inner.Prev()
}

func (it *bloomFilterAwareIterator) Error() error {
	return it.inner.Error()
}

func (it *bloomFilterAwareIterator) Close() {
	it.inner.Close()
}
