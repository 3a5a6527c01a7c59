// Package id provides the 128-bit identifiers assigned to log entries.
//
// # Format
//
// An ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison preserves creation order, and the millisecond part
// doubles as the entry timestamp, so an entry's id and its timestamp can
// never disagree.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence instead of going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next ID.
//
// Usage
//
//	g := id.NewGenerator()
//	newID := g.Next()
//	ts := newID.Time()   // creation time, ms precision
//	s := newID.String()  // 32-char hex, also the JSON form
//	back, _ := id.Parse(s)
package id
