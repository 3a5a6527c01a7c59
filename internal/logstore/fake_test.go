package logstore

import (
	"context"
	"errors"
	"sync"

	"github.com/Talis-dev/logvault/internal/archive"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

func quietLogger() logpkg.Logger {
	return logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
}

// memArchive records appends. When gate is set each batch waits on it.
type memArchive struct {
	mu      sync.Mutex
	entries []logentry.Entry
	batches []int
	calls   int
	err     error
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (m *memArchive) Append(ctx context.Context, e logentry.Entry) error {
	return m.AppendBatch(ctx, []logentry.Entry{e})
}

func (m *memArchive) AppendBatch(ctx context.Context, entries []logentry.Entry) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.started != nil {
		m.once.Do(func() { close(m.started) })
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entries...)
	m.batches = append(m.batches, len(entries))
	return nil
}

func (m *memArchive) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memArchive) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batches...)
}

func (m *memArchive) ListPartitions(context.Context) ([]archive.Date, error) {
	return nil, errors.New("not implemented")
}

func (m *memArchive) ReadPartition(context.Context, archive.Date) ([]logentry.Entry, error) {
	return nil, errors.New("not implemented")
}

func (m *memArchive) Ping(context.Context) error { return nil }
func (m *memArchive) Close() error               { return nil }

func (m *memArchive) snapshot() []logentry.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logentry.Entry(nil), m.entries...)
}
