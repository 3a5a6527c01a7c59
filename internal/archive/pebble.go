package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/Talis-dev/logvault/internal/storage/pebble"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// PebbleOptions configures the Pebble archive driver.
type PebbleOptions struct {
	// Location decides partition boundaries. Defaults to time.Local.
	Location *time.Location
	// Codec is applied to new records; existing records keep their own.
	Codec  Codec
	Logger logpkg.Logger
}

// PebbleArchive stores partitions in a Pebble keyspace.
type PebbleArchive struct {
	db     *pebblestore.DB
	loc    *time.Location
	codec  Codec
	coder  *payloadCodec
	logger logpkg.Logger

	// lastIter opens the iterator used to recover a partition's last
	// sequence. Replaced in tests.
	lastIter func(*pebble.IterOptions) (seqIterator, error)

	mu      sync.Mutex
	closed  bool
	lastSeq map[Date]uint64
}

// seqIterator is the part of *pebble.Iterator lastSeqLocked needs.
type seqIterator interface {
	Last() bool
	Key() []byte
	Error() error
	Close() error
}

var _ Archive = (*PebbleArchive)(nil)

// NewPebble returns an archive on db. The caller keeps ownership of db.
func NewPebble(db *pebblestore.DB, opts PebbleOptions) (*PebbleArchive, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil db", ErrStorageUnavailable)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("archive")
	}
	coder, err := newPayloadCodec()
	if err != nil {
		return nil, err
	}
	a := &PebbleArchive{
		db:      db,
		loc:     loc,
		codec:   opts.Codec,
		coder:   coder,
		logger:  logger,
		lastSeq: make(map[Date]uint64),
	}
	a.lastIter = func(o *pebble.IterOptions) (seqIterator, error) { return db.NewIter(o) }
	return a, nil
}

// Location returns the zone used for partition boundaries.
func (a *PebbleArchive) Location() *time.Location { return a.loc }

// Append writes e as the next record of its partition.
func (a *PebbleArchive) Append(ctx context.Context, e logentry.Entry) error {
	return a.AppendBatch(ctx, []logentry.Entry{e})
}

// AppendBatch writes entries in one Pebble batch, so a burst costs a single
// commit. Sequences are handed out per partition in slice order and only
// become visible to later appends once the commit succeeds.
func (a *PebbleArchive) AppendBatch(ctx context.Context, entries []logentry.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("%w: archive closed", ErrStorageUnavailable)
	}

	b := a.db.NewBatch()
	defer b.Close()
	next := make(map[Date]uint64)
	for _, e := range entries {
		val, err := a.encodeLocked(e)
		if err != nil {
			return err
		}
		d := DateOf(e.Timestamp, a.loc)
		seq, ok := next[d]
		if !ok {
			if seq, err = a.lastSeqLocked(d); err != nil {
				return err
			}
		}
		seq++
		if err := b.Set(KeyEntry(d, seq), val, nil); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		next[d] = seq
	}
	if err := a.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("%w: append %d entries: %w", ErrStorageUnavailable, len(entries), err)
	}
	for d, seq := range next {
		a.lastSeq[d] = seq
	}
	return nil
}

func (a *PebbleArchive) encodeLocked(e logentry.Entry) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("archive: encode entry %s: %w", e.ID, err)
	}
	payload, err := a.coder.encode(a.codec, raw)
	if err != nil {
		return nil, err
	}
	return EncodeRecord(encodeHeader(a.codec, e.TimestampMs()), payload), nil
}

// lastSeqLocked returns the highest sequence stored for d, loading it from
// the keyspace on first use. A failed lookup is not cached.
func (a *PebbleArchive) lastSeqLocked(d Date) (uint64, error) {
	if seq, ok := a.lastSeq[d]; ok {
		return seq, nil
	}
	low, high := entryBounds(d)
	iter, err := a.lastIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer iter.Close()
	var seq uint64
	if iter.Last() {
		seq = seqFromKey(iter.Key())
	} else if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("%w: last sequence of %s: %w", ErrStorageUnavailable, d, err)
	}
	a.lastSeq[d] = seq
	return seq, nil
}

// ListPartitions walks partitions from newest to oldest.
func (a *PebbleArchive) ListPartitions(ctx context.Context) ([]Date, error) {
	low, high := archiveBounds()
	iter, err := a.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer iter.Close()

	dates := []Date{}
	for ok := iter.Last(); ok; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := iter.Key()
		d, valid := dateFromKey(key)
		if !valid {
			// Foreign key inside the prefix: step over it.
			ok = iter.Prev()
			continue
		}
		dates = append(dates, d)
		ok = iter.SeekLT(KeyPartition(d))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return dates, nil
}

// ReadPartition returns the entries of d in append order. Records failing
// their checksum are skipped and reported.
func (a *PebbleArchive) ReadPartition(ctx context.Context, d Date) ([]logentry.Entry, error) {
	low, high := entryBounds(d)
	iter, err := a.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer iter.Close()

	entries := []logentry.Entry{}
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := a.decodeEntry(iter.Value())
		if err != nil {
			a.logger.Warn("skipping unreadable archive record",
				logpkg.Str("date", d.String()),
				logpkg.F("seq", seqFromKey(iter.Key())),
				logpkg.Err(err))
			continue
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return entries, nil
}

func (a *PebbleArchive) decodeEntry(val []byte) (logentry.Entry, error) {
	dec, ok := DecodeRecord(val)
	if !ok {
		return logentry.Entry{}, errors.New("checksum mismatch")
	}
	codec, tsMs, ok := decodeHeader(dec.Header)
	if !ok {
		return logentry.Entry{}, errors.New("short header")
	}
	raw, err := a.coder.decode(codec, dec.Payload)
	if err != nil {
		return logentry.Entry{}, err
	}
	var e logentry.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return logentry.Entry{}, err
	}
	e.Timestamp = time.UnixMilli(tsMs)
	return e, nil
}

// Ping checks that the keyspace can be iterated.
func (a *PebbleArchive) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := a.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return it.Close()
}

// Close releases codec resources. The Pebble DB stays open. Appends after
// Close fail with ErrStorageUnavailable.
func (a *PebbleArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.coder.close()
	return nil
}
