package archive

import (
	"context"
	"errors"

	"github.com/Talis-dev/logvault/pkg/logentry"
)

var (
	// ErrStorageUnavailable wraps failures of the underlying storage.
	ErrStorageUnavailable = errors.New("archive storage unavailable")
	// ErrInvalidDate is returned for malformed partition dates.
	ErrInvalidDate = errors.New("invalid archive date")
)

// Archive is durable, date-partitioned, append-only storage of entries.
type Archive interface {
	// Append persists e in the partition of its timestamp's date. Appends to
	// the same partition are serialized.
	Append(ctx context.Context, e logentry.Entry) error
	// AppendBatch persists entries in order as one unit: either all of them
	// are stored or none are.
	AppendBatch(ctx context.Context, entries []logentry.Entry) error
	// ListPartitions returns every date with persisted data, newest first.
	ListPartitions(ctx context.Context) ([]Date, error)
	// ReadPartition returns the entries of d in append order. A missing
	// partition yields an empty slice and no error.
	ReadPartition(ctx context.Context, d Date) ([]logentry.Entry, error)
	// Ping reports whether the storage can serve requests.
	Ping(ctx context.Context) error
	Close() error
}
