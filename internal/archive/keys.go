package archive

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - archive/{YYYY-MM-DD}/e/{seq_be8}

var (
	archivePrefix = []byte("archive/")
	entrySeg      = []byte("/e/")
	// dateKeyLen is the fixed width of the date segment.
	dateKeyLen = len(dateLayout)
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyPartition builds the prefix shared by every key of partition d.
func KeyPartition(d Date) []byte {
	k := make([]byte, 0, len(archivePrefix)+dateKeyLen+1)
	k = append(k, archivePrefix...)
	k = append(k, d.String()...)
	k = append(k, '/')
	return k
}

// KeyEntry builds the entry key with a big-endian sequence for ordering.
func KeyEntry(d Date, seq uint64) []byte {
	k := make([]byte, 0, len(archivePrefix)+dateKeyLen+len(entrySeg)+8)
	k = append(k, archivePrefix...)
	k = append(k, d.String()...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// entryBounds returns [low, high) covering every entry of d.
func entryBounds(d Date) (low, high []byte) {
	low = KeyEntry(d, 0)
	high = append(KeyEntry(d, ^uint64(0)), 0x00)
	return low, high
}

// archiveBounds returns [low, high) covering the whole archive keyspace.
func archiveBounds() (low, high []byte) {
	low = append([]byte(nil), archivePrefix...)
	high = append([]byte(nil), archivePrefix...)
	high[len(high)-1]++
	return low, high
}

// dateFromKey extracts the partition date of an archive key.
func dateFromKey(k []byte) (Date, bool) {
	if len(k) < len(archivePrefix)+dateKeyLen {
		return Date{}, false
	}
	d, err := ParseDate(string(k[len(archivePrefix) : len(archivePrefix)+dateKeyLen]))
	if err != nil {
		return Date{}, false
	}
	return d, true
}

// seqFromKey extracts the sequence number of an entry key.
func seqFromKey(k []byte) uint64 {
	if len(k) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k[len(k)-8:])
}
