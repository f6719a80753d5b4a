package table

import (
	"testing"

	"github.com/aalhour/blocktable/internal/block"
	"github.com/aalhour/blocktable/internal/dbformat"
)

func buildIndexBlock(t *testing.T, entries map[string]string, keys []string) *block.Block {
	t.Helper()
	b := block.NewBuilder(2)
	for _, k := range keys {
		b.Add([]byte(k), []byte(entries[k]))
	}
	blk, err := block.NewBlock(b.Finish())
	if err != nil {
		t.Fatalf("NewBlock() error = %v", err)
	}
	return blk
}

func TestBinarySearchIndexReaderIteratesInOrder(t *testing.T) {
	keys := []string{"a", "b", "c"}
	entries := map[string]string{"a": "1", "b": "2", "c": "3"}
	blk := buildIndexBlock(t, entries, keys)

	r := NewBinarySearchIndexReader(blk)
	it := r.NewIterator(true)
	it.SeekToFirst()

	i := 0
	for it.Valid() {
		if string(it.Key()) != keys[i] {
			t.Errorf("entry %d: key = %q, want %q", i, it.Key(), keys[i])
		}
		it.Next()
		i++
	}
	if i != len(keys) {
		t.Errorf("got %d entries, want %d", i, len(keys))
	}
	if r.ApproximateMemoryUsage() == 0 {
		t.Errorf("ApproximateMemoryUsage() = 0, want > 0")
	}
}

// buildHashAuxiliaries encodes the hash-index prefixes/prefixesmetadata
// meta-blocks for a set of (prefix, numBlocks) records, in order. Every
// length and count here fits in a single varint byte, which keeps the
// fixture readable.
func buildHashAuxiliaries(records ...struct {
	prefix    string
	numBlocks int
}) (prefixesBlock, prefixesMetaBlock []byte) {
	for _, r := range records {
		prefixesBlock = append(prefixesBlock, []byte(r.prefix)...)
		prefixesMetaBlock = append(prefixesMetaBlock, byte(len(r.prefix)), byte(r.numBlocks))
	}
	return prefixesBlock, prefixesMetaBlock
}

// internalKeyFor builds the internal-key form (user key + sequence/type
// trailer) that real index blocks store as entry keys; hashIndexIterator's
// prefix lookup only makes sense against that shape.
func internalKeyFor(userKey string, seq int) []byte {
	return []byte(dbformat.NewInternalKey([]byte(userKey), dbformat.SequenceNumber(seq), dbformat.TypeValue))
}

func buildHashIndexBlock(t *testing.T, keys []string) *block.Block {
	t.Helper()
	b := block.NewBuilder(1) // one restart point per key
	for i, k := range keys {
		b.Add(internalKeyFor(k, 100+i), []byte("v"))
	}
	blk, err := block.NewBlock(b.Finish())
	if err != nil {
		t.Fatalf("NewBlock() error = %v", err)
	}
	return blk
}

func TestHashIndexIteratorSeekNarrowsToRestartRange(t *testing.T) {
	// One restart point per key so first/last restart indexes are exact
	// and easy to reason about: "aa" covers restarts [0,2), "bb" covers [2,4).
	keys := []string{"aa1", "aa2", "bb1", "bb2"}
	blk := buildHashIndexBlock(t, keys)

	prefixesBlock, prefixesMetaBlock := buildHashAuxiliaries(
		struct {
			prefix    string
			numBlocks int
		}{"aa", 2},
		struct {
			prefix    string
			numBlocks int
		}{"bb", 2},
	)

	extractor := NewFixedPrefixExtractor(2)
	reader := NewHashIndexReader(blk, prefixesBlock, prefixesMetaBlock, extractor, false, nil)

	it, ok := reader.NewIterator(false).(*hashIndexIterator)
	if !ok {
		t.Fatalf("NewIterator(false) returned %T, want *hashIndexIterator", reader.NewIterator(false))
	}

	target := internalKeyFor("bb1", 103)
	rr, ok := it.lookup(target)
	if !ok {
		t.Fatalf("lookup(bb1) ok = false, want true")
	}
	if rr != (restartRange{first: 2, last: 4}) {
		t.Errorf("lookup(bb1) = %+v, want {first:2 last:4} (the shortcut must narrow to bb's own restart points, not the whole block)", rr)
	}

	it.Seek(target)
	if !it.Valid() {
		t.Fatalf("Seek(bb1) invalid")
	}
	if gotKey, _ := dbformat.ParseInternalKey(it.Key()); string(gotKey.UserKey) != "bb1" {
		t.Errorf("Seek(bb1) landed on %q, want bb1", gotKey.UserKey)
	}
}

func TestHashIndexIteratorAllowCollisionIsDenserAndProbabilistic(t *testing.T) {
	keys := []string{"aa1", "aa2", "bb1", "bb2"}
	blk := buildHashIndexBlock(t, keys)

	prefixesBlock, prefixesMetaBlock := buildHashAuxiliaries(
		struct {
			prefix    string
			numBlocks int
		}{"aa", 2},
		struct {
			prefix    string
			numBlocks int
		}{"bb", 2},
	)

	extractor := NewFixedPrefixExtractor(2)
	reader := NewHashIndexReader(blk, prefixesBlock, prefixesMetaBlock, extractor, true, nil)
	hr, ok := reader.(*hashIndexReader)
	if !ok {
		t.Fatalf("NewHashIndexReader(allowCollision=true) returned %T, want *hashIndexReader", reader)
	}
	if hr.exact != nil {
		t.Errorf("exact map populated under allow_collision, want nil (bucket array only)")
	}
	if len(hr.buckets) != 2 {
		t.Errorf("len(buckets) = %d, want 2 (one bucket per distinct prefix)", len(hr.buckets))
	}

	// Both keys still resolve correctly regardless of whether "aa" and
	// "bb" happened to collide into the same bucket: a collision can only
	// widen the scanned range, never drop an entry.
	it := reader.NewIterator(false)
	it.Seek(internalKeyFor("bb1", 103))
	if got, _ := dbformat.ParseInternalKey(it.Key()); !it.Valid() || string(got.UserKey) != "bb1" {
		t.Errorf("Seek(bb1) landed on %q, want bb1", it.Key())
	}
	it.Seek(internalKeyFor("aa2", 101))
	if got, _ := dbformat.ParseInternalKey(it.Key()); !it.Valid() || string(got.UserKey) != "aa2" {
		t.Errorf("Seek(aa2) landed on %q, want aa2", it.Key())
	}
}

func TestHashIndexReaderFallsBackOnCorruptAuxiliaries(t *testing.T) {
	keys := []string{"a", "b", "c"}
	entries := map[string]string{"a": "1", "b": "2", "c": "3"}
	blk := buildIndexBlock(t, entries, keys)

	r := NewHashIndexReader(blk, []byte{0xff, 0xff}, []byte{0xff}, NewNoopPrefixExtractor(), false, nil)

	it := r.NewIterator(false)
	it.SeekToFirst()
	if !it.Valid() {
		t.Fatalf("SeekToFirst() invalid after fallback, want the binary-search index to still work")
	}
	if string(it.Key()) != "a" {
		t.Errorf("first key = %q, want %q", it.Key(), "a")
	}
}
