package logstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Talis-dev/logvault/internal/archive"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/id"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

const (
	DefaultCapacity     = 1000
	DefaultQueueSize    = 16384
	DefaultWriteTimeout = 5 * time.Second
)

// Options configures a Store. Zero values take the defaults above.
type Options struct {
	Capacity int
	// Archive receives every logged entry. Nil keeps the store memory-only.
	Archive      archive.Archive
	QueueSize    int
	WriteTimeout time.Duration
	Logger       logpkg.Logger
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Count      int            `json:"count"`
	Capacity   int            `json:"capacity"`
	Evicted    uint64         `json:"evicted"`
	Levels     map[string]int `json:"levels"`
	Categories map[string]int `json:"categories"`
	Archive    ArchiveStats   `json:"archive"`
}

// ArchiveStats reports the archive writer counters.
type ArchiveStats struct {
	Enabled       bool   `json:"enabled"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Archived      uint64 `json:"archived"`
	Failed        uint64 `json:"failed"`
	Dropped       uint64 `json:"dropped"`
	// Batches counts archive commits; one commit carries every entry that
	// queued up while the previous one was in flight.
	Batches uint64 `json:"batches"`
}

// Store holds the most recent entries in memory and forwards every entry to
// the archive.
type Store struct {
	mu      sync.Mutex
	ring    *ring
	gen     *id.Generator
	notify  chan struct{}
	evicted uint64

	arch   archive.Archive
	writer *archiveWriter
	logger logpkg.Logger
}

// New builds a Store and starts its archive writer when an archive is set.
func New(opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("logstore")
	}
	s := &Store{
		ring:   newRing(opts.Capacity),
		gen:    id.NewGenerator(),
		notify: make(chan struct{}),
		arch:   opts.Archive,
		logger: logger,
	}
	if opts.Archive != nil {
		s.writer = newArchiveWriter(opts.Archive, opts.QueueSize, opts.WriteTimeout, logger)
	}
	return s
}

// Log records a new entry and returns it. The archive write happens in the
// background; its failures never reach the caller.
func (s *Store) Log(level logentry.Level, category, message string, data map[string]any) logentry.Entry {
	var (
		reason string
		total  uint64
	)
	s.mu.Lock()
	e := logentry.New(s.gen.Next(), level, category, message, data)
	if s.ring.push(e) {
		s.evicted++
	}
	// Enqueued under the lock so archive order matches id order.
	if s.writer != nil {
		reason, total = s.writer.enqueue(e)
	}
	s.notifyLocked()
	s.mu.Unlock()

	if reason != "" {
		s.writer.logDrop(e, reason, total)
	}
	return e
}

// GetLogs returns a copy of the in-memory entries, oldest first.
func (s *Store) GetLogs() []logentry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.snapshot()
}

// Since returns the in-memory entries with ids greater than after, oldest
// first. A zero id returns everything.
func (s *Store) Since(after id.ID) []logentry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ring.size()
	for i > 0 && s.ring.at(i-1).ID.Compare(after) > 0 {
		i--
	}
	out := make([]logentry.Entry, 0, s.ring.size()-i)
	for ; i < s.ring.size(); i++ {
		out = append(out, *s.ring.at(i))
	}
	return out
}

// LastID returns the id of the newest in-memory entry, or id.Zero.
func (s *Store) LastID() id.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring.size() == 0 {
		return id.Zero
	}
	return s.ring.at(s.ring.size() - 1).ID
}

// GetAvailableDates lists archived days, newest first.
func (s *Store) GetAvailableDates(ctx context.Context) ([]archive.Date, error) {
	if s.arch == nil {
		return []archive.Date{}, nil
	}
	return s.arch.ListPartitions(ctx)
}

// ReadLogsFromFile returns the archived entries of d in original order.
func (s *Store) ReadLogsFromFile(ctx context.Context, d archive.Date) ([]logentry.Entry, error) {
	if s.arch == nil {
		return []logentry.Entry{}, nil
	}
	return s.arch.ReadPartition(ctx, d)
}

// DeleteLogsByCategory removes in-memory entries whose category equals
// category exactly. The archive is not touched.
func (s *Store) DeleteLogsByCategory(category string) int {
	return s.removeIf(func(e *logentry.Entry) bool { return e.Category == category })
}

// DeleteLogsByLevel removes in-memory entries at level. Unknown levels
// match nothing.
func (s *Store) DeleteLogsByLevel(level string) int {
	return s.removeIf(func(e *logentry.Entry) bool { return string(e.Level) == level })
}

func (s *Store) removeIf(pred func(*logentry.Entry) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ring.removeIf(pred)
	if n > 0 {
		s.notifyLocked()
	}
	return n
}

// ClearLogs empties memory.
func (s *Store) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.reset()
	s.notifyLocked()
}

// Categories returns the distinct in-memory categories, sorted.
func (s *Store) Categories() []string {
	s.mu.Lock()
	seen := make(map[string]struct{})
	for i := 0; i < s.ring.size(); i++ {
		seen[s.ring.at(i).Category] = struct{}{}
	}
	s.mu.Unlock()
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Count:      s.ring.size(),
		Capacity:   s.ring.capacity(),
		Evicted:    s.evicted,
		Levels:     make(map[string]int),
		Categories: make(map[string]int),
	}
	for i := 0; i < s.ring.size(); i++ {
		e := s.ring.at(i)
		st.Levels[string(e.Level)]++
		st.Categories[e.Category]++
	}
	s.mu.Unlock()
	if s.writer != nil {
		st.Archive = s.writer.stats()
	}
	return st
}

// Changes returns a channel closed on the next Log, delete or clear.
// Grab it before reading so no change slips between the read and the wait.
func (s *Store) Changes() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notify
}

// WaitForChange blocks until the store changes or timeout elapses. It
// returns true when woken by a change. A non-positive timeout waits forever.
func (s *Store) WaitForChange(timeout time.Duration) bool {
	ch := s.Changes()
	if timeout <= 0 {
		<-ch
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}

func (s *Store) notifyLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// Flush waits until every entry logged before the call has been handed to
// the archive.
func (s *Store) Flush(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.flush(ctx)
}

// Close stops archive intake and drains the queue. Entries logged after
// Close stay in memory only. The archive itself is left open, and no archive
// call is in flight once Close returns, even on a context error.
func (s *Store) Close(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.close(ctx)
}
