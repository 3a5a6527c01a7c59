// Package archive implements durable, date-partitioned storage of log
// entries.
//
// # Overview
//
// Every entry is appended to the partition named by the calendar date of its
// timestamp in the archive's time zone. Partitions are append-only; nothing in
// this package mutates or deletes a stored entry.
//
// The default driver persists to Pebble. Keys are lexicographically ordered so
// that a partition is a contiguous range and partitions sort by date:
//   - archive/{YYYY-MM-DD}/e/{seq_be8}   (entries, in append order)
//
// Records are stored as: varint headerLen | header | payload | crc32c(header|payload),
// where header = codec(1B) | ts_ms(8B BE) and payload is the JSON entry,
// zstd-compressed when codec is CodecZstd.
//
// API surface
//
//	a, _ := archive.NewPebble(db, archive.PebbleOptions{Location: time.Local})
//	_ = a.Append(ctx, entry)
//	dates, _ := a.ListPartitions(ctx)         // newest first
//	entries, _ := a.ReadPartition(ctx, dates[0]) // oldest first
//
// Partition listing needs no index: it walks the keyspace backwards, jumping
// from the last key of one partition straight to the end of the previous one.
package archive
