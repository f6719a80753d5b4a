// Package checksum provides checksum functions compatible with RocksDB.
//
// XXHash64 is computed via github.com/cespare/xxhash/v2, the same
// pure-Go XXH64 implementation used by CockroachDB Pebble for its SST
// block checksums.
// Reference: https://github.com/Cyan4973/xxHash/blob/dev/doc/xxhash_spec.md

package checksum

import (
	"github.com/cespare/xxhash/v2"
)

// XXHash64 computes the 64-bit XXHash of data.
func XXHash64(data []byte) uint64 {
	return XXHash64WithSeed(data, 0)
}

// XXHash64WithSeed computes the 64-bit XXHash of data with a seed.
func XXHash64WithSeed(data []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(data)
	return d.Sum64()
}

// XXHash64ChecksumWithLastByte computes XXHash64 checksum with a separate last byte,
// returning the lower 32 bits as used by RocksDB.
func XXHash64ChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	d := xxhash.New()
	_, _ = d.Write(data)
	_, _ = d.Write([]byte{lastByte})
	return uint32(d.Sum64())
}
