// Package columnar implements the on-disk format of the topology tables.
//
// A topology snapshot consists of four tables per wiki (articles, categories,
// category_graph, article_category), each a single file holding a handful of
// columns. The ETL pipeline writes these files; the corpus loader reads them
// once at startup and discards them after the in-memory CSR structures are
// built.
//
// # Layout
//
// Files are little-endian throughout:
//
//	[64-byte header] [column block]... [column directory]
//
// The header carries magic, version, the block codec and a CRC32 of itself.
// Each column block is independently compressed (none, zstd or lz4) and
// checksummed, so a flipped bit in one column is detected before any row is
// decoded. The directory at the tail names each block and records its type,
// offset and sizes.
//
// # Column encodings
//
//	u32: rows × 4 bytes
//	str: (rows+1) × u32 offsets, then the concatenated UTF-8 bytes
//
// Any structural damage (bad magic, version from the future, checksum
// mismatch, truncated block) surfaces as ErrCorrupted or one of its
// siblings; the loader translates these into a corpus-fatal malformed error.
package columnar
