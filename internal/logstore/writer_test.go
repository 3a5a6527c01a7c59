package logstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

func TestWriterPreservesOrder(t *testing.T) {
	arch := &memArchive{}
	s := New(Options{Archive: arch, Logger: quietLogger()})
	defer s.Close(context.Background())
	for i := 0; i < 100; i++ {
		s.Log(logentry.LevelInfo, "c", fmt.Sprint(i), nil)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got := arch.snapshot()
	if len(got) != 100 {
		t.Fatalf("want 100 archived, got %d", len(got))
	}
	for i := range got {
		if got[i].Message != fmt.Sprint(i) {
			t.Fatalf("archive order broken at %d: %s", i, got[i].Message)
		}
	}
}

func TestWriterDropsWhileArchiveStalled(t *testing.T) {
	arch := &memArchive{gate: make(chan struct{}), started: make(chan struct{})}
	s := New(Options{Archive: arch, QueueSize: 2, Logger: quietLogger()})
	defer s.Close(context.Background())

	s.Log(logentry.LevelInfo, "c", "0", nil)
	select {
	case <-arch.started:
	case <-time.After(time.Second):
		t.Fatalf("writer never picked up the first entry")
	}
	// Worker is parked on the gate: two fit in the queue, the rest drop.
	for i := 1; i <= 4; i++ {
		s.Log(logentry.LevelInfo, "c", fmt.Sprint(i), nil)
	}
	if n := len(s.GetLogs()); n != 5 {
		t.Fatalf("memory must keep every entry, got %d", n)
	}
	close(arch.gate)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	st := s.Stats().Archive
	if st.Archived != 3 || st.Dropped != 2 || st.Failed != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if got := msgs(arch.snapshot()); got != "012" {
		t.Fatalf("want 012 archived, got %s", got)
	}
}

func TestWriterCountsFailures(t *testing.T) {
	arch := &memArchive{err: errors.New("disk gone")}
	s := New(Options{Archive: arch, Logger: quietLogger()})
	defer s.Close(context.Background())
	e := s.Log(logentry.LevelError, "c", "m", nil)
	if e.ID.IsZero() {
		t.Fatalf("log must succeed despite archive failure")
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if st := s.Stats().Archive; st.Failed != 1 || st.Archived != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestWriterTimeout(t *testing.T) {
	arch := &memArchive{gate: make(chan struct{})}
	s := New(Options{Archive: arch, WriteTimeout: 20 * time.Millisecond, Logger: quietLogger()})
	defer s.Close(context.Background())
	s.Log(logentry.LevelInfo, "c", "slow", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if st := s.Stats().Archive; st.Failed != 1 {
		t.Fatalf("want timed out write counted as failed, got %+v", st)
	}
}

func TestLogAfterClose(t *testing.T) {
	arch := &memArchive{}
	s := New(Options{Archive: arch, Logger: quietLogger()})
	s.Log(logentry.LevelInfo, "c", "before", nil)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := msgs(arch.snapshot()); got != "before" {
		t.Fatalf("close did not drain: %q", got)
	}
	s.Log(logentry.LevelInfo, "c", "after", nil)
	if got := msgs(s.GetLogs()); got != "beforeafter" {
		t.Fatalf("memory missing entries: %s", got)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if st := s.Stats().Archive; st.Dropped != 1 || st.Archived != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestFlushHonorsContext(t *testing.T) {
	arch := &memArchive{gate: make(chan struct{})}
	s := New(Options{Archive: arch, WriteTimeout: time.Minute, Logger: quietLogger()})
	s.Log(logentry.LevelInfo, "c", "stuck", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	close(arch.gate)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWriterCoalescesQueuedEntries(t *testing.T) {
	arch := &memArchive{gate: make(chan struct{}), started: make(chan struct{})}
	s := New(Options{Archive: arch, Logger: quietLogger()})
	defer s.Close(context.Background())

	s.Log(logentry.LevelInfo, "c", "0", nil)
	select {
	case <-arch.started:
	case <-time.After(time.Second):
		t.Fatalf("writer never picked up the first entry")
	}
	for i := 1; i <= 100; i++ {
		s.Log(logentry.LevelInfo, "c", fmt.Sprint(i), nil)
	}
	close(arch.gate)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := arch.batchSizes(); len(got) != 2 || got[0] != 1 || got[1] != 100 {
		t.Fatalf("want batches [1 100], got %v", got)
	}
	got := arch.snapshot()
	for i := range got {
		if got[i].Message != fmt.Sprint(i) {
			t.Fatalf("archive order broken at %d: %s", i, got[i].Message)
		}
	}
	if st := s.Stats().Archive; st.Archived != 101 || st.Batches != 2 || st.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestWriterBatchCapped(t *testing.T) {
	arch := &memArchive{gate: make(chan struct{}), started: make(chan struct{})}
	s := New(Options{Archive: arch, Logger: quietLogger()})
	defer s.Close(context.Background())

	s.Log(logentry.LevelInfo, "c", "first", nil)
	<-arch.started
	for i := 0; i < maxBatch+10; i++ {
		s.Log(logentry.LevelInfo, "c", "x", nil)
	}
	close(arch.gate)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	for _, n := range arch.batchSizes() {
		if n > maxBatch {
			t.Fatalf("batch of %d exceeds cap %d", n, maxBatch)
		}
	}
	if n := len(arch.snapshot()); n != maxBatch+11 {
		t.Fatalf("want %d archived, got %d", maxBatch+11, n)
	}
}

func TestCloseTimeoutStopsWriter(t *testing.T) {
	arch := &memArchive{gate: make(chan struct{}), started: make(chan struct{})}
	s := New(Options{Archive: arch, WriteTimeout: time.Minute, Logger: quietLogger()})

	s.Log(logentry.LevelInfo, "c", "0", nil)
	<-arch.started
	for i := 1; i <= 3; i++ {
		s.Log(logentry.LevelInfo, "c", fmt.Sprint(i), nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	select {
	case <-s.writer.stopped:
	default:
		t.Fatalf("close returned while the writer was still running")
	}
	calls := arch.callCount()
	time.Sleep(20 * time.Millisecond)
	if arch.callCount() != calls || calls != 1 {
		t.Fatalf("archive called after close: %d then %d", calls, arch.callCount())
	}
	if st := s.Stats().Archive; st.Failed != 1 || st.Dropped != 3 || st.Archived != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

// storeReadingOutput reads the store from inside a log write.
type storeReadingOutput struct {
	store *Store
	mu    sync.Mutex
	seen  int
}

func (o *storeReadingOutput) Write(_ *logpkg.Entry, _ []byte) error {
	n := len(o.store.GetLogs())
	o.mu.Lock()
	o.seen = n
	o.mu.Unlock()
	return nil
}

func (o *storeReadingOutput) Close() error { return nil }

func TestDropReportedOutsideStoreLock(t *testing.T) {
	out := &storeReadingOutput{}
	s := New(Options{Archive: &memArchive{}, Logger: logpkg.NewLogger(logpkg.WithOutput(out))})
	out.store = s
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Log(logentry.LevelInfo, "c", "after close", nil)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Log blocked while reporting the dropped archive write")
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.seen != 1 {
		t.Fatalf("drop warning not written, saw %d", out.seen)
	}
	if st := s.Stats().Archive; st.Dropped != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
