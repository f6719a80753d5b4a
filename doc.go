/*
Package rockyardkv provides a pure-Go reader for RocksDB-compatible
block-based SST (sorted string table) files.

It targets on-disk format compatibility with RocksDB v10.7.5's
block-based table format: footer, metaindex, data index (binary-search or
hash-augmented), properties, filter (full, block-based, or fixed-size),
and range-deletion blocks, plus the CRC32C/XXH3/XXHash64 checksums and
Snappy/Zlib/LZ4/Zstd compression codecs RocksDB may have used to write
them. It is a reader only: there is no write path, no WAL, and no
MANIFEST; opening and querying an SST file written by RocksDB (or by this
package's own table builder, used mainly for tests) is the whole scope.

# Usage

Open a table with internal/table.Open against a table.ReadableFile (ReadAt,
Size and Close), then use
Get for point lookups, NewCachedIterator for ordered scans, PrefixMayMatch
to rule out a prefix without touching the data blocks, and Prefetch to
warm the block cache over a key range ahead of a scan.

The repository has no examples directory; the package tests under
internal/table show each of these calls in use.

# Concurrency

A Reader is safe for concurrent use by multiple goroutines. Individual
Iterator instances are not safe for concurrent use; each goroutine should
use its own iterator.

# Compatibility

SST files read by this package are expected to have been produced by
C++ RocksDB v10.7.5 (or a table builder matching its format). The footer
decoder also accepts the legacy (version 0) footer and format versions
1 through block.LatestFormatVersion; a newer format version is rejected.

Reference: RocksDB v10.7.5 table/block_based/block_based_table_reader.h
*/
package rockyardkv
