package logstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Talis-dev/logvault/internal/archive"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// queueItem is either an entry to archive or, when done is set, a flush
// barrier closed once every earlier item has been handled.
type queueItem struct {
	entry logentry.Entry
	done  chan struct{}
}

// maxBatch caps how many queued entries go into one archive commit.
const maxBatch = 256

// archiveWriter forwards entries to the archive on one goroutine. Whatever
// has queued up while a commit was in flight goes out in the next batch.
type archiveWriter struct {
	arch    archive.Archive
	timeout time.Duration
	logger  logpkg.Logger
	queue   chan queueItem
	stopped chan struct{}

	// ctx is canceled when close gives up waiting; writes stop reaching the
	// archive after that.
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders sends against close(queue).
	mu     sync.RWMutex
	closed bool

	archived atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
	batches  atomic.Uint64
}

func newArchiveWriter(arch archive.Archive, size int, timeout time.Duration, logger logpkg.Logger) *archiveWriter {
	ctx, cancel := context.WithCancel(context.Background())
	w := &archiveWriter{
		arch:    arch,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan queueItem, size),
		stopped: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go w.run()
	return w
}

func (w *archiveWriter) run() {
	defer close(w.stopped)
	batch := make([]logentry.Entry, 0, maxBatch)
	var barriers []chan struct{}
	for it := range w.queue {
		batch, barriers = batch[:0], barriers[:0]
		for {
			if it.done != nil {
				barriers = append(barriers, it.done)
			} else {
				batch = append(batch, it.entry)
			}
			if len(batch) == maxBatch {
				break
			}
			var ok bool
			select {
			case it, ok = <-w.queue:
			default:
			}
			if !ok {
				break
			}
		}
		if len(batch) > 0 {
			w.write(batch)
		}
		for _, done := range barriers {
			close(done)
		}
	}
}

func (w *archiveWriter) write(batch []logentry.Entry) {
	n := uint64(len(batch))
	if w.ctx.Err() != nil {
		w.dropped.Add(n)
		return
	}
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()
	w.batches.Add(1)
	if err := w.arch.AppendBatch(ctx, batch); err != nil {
		w.failed.Add(n)
		w.logger.Warn("archive append failed",
			logpkg.Int("entries", len(batch)),
			logpkg.Str("first_id", batch[0].ID.String()),
			logpkg.Err(err))
		return
	}
	w.archived.Add(n)
}

// enqueue never blocks. When e is dropped it returns the reason and the
// running drop total; the caller logs it with logDrop outside its locks.
func (w *archiveWriter) enqueue(e logentry.Entry) (reason string, total uint64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return "writer closed", w.dropped.Add(1)
	}
	select {
	case w.queue <- queueItem{entry: e}:
		return "", 0
	default:
		return "queue full", w.dropped.Add(1)
	}
}

func (w *archiveWriter) logDrop(e logentry.Entry, reason string, total uint64) {
	// First drop, then every 1000th.
	if total == 1 || total%1000 == 0 {
		w.logger.Warn("archive write dropped",
			logpkg.Str("reason", reason),
			logpkg.Str("entry_id", e.ID.String()),
			logpkg.F("dropped_total", total))
	}
}

// flush returns once every entry enqueued before the call was handed to the
// archive, successfully or not.
func (w *archiveWriter) flush(ctx context.Context) error {
	done := make(chan struct{})
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		select {
		case <-w.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case w.queue <- queueItem{done: done}:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops intake and waits for the queue to drain. If ctx ends first
// the writer is canceled: the in-flight commit is abandoned where the
// archive allows it, the rest of the queue is counted as dropped, and close
// returns only after the writer goroutine has exited, so the archive can be
// closed safely afterwards.
func (w *archiveWriter) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	select {
	case <-w.stopped:
		w.cancel()
		return nil
	case <-ctx.Done():
	}
	w.cancel()
	<-w.stopped
	w.logger.Warn("archive drain abandoned",
		logpkg.F("dropped_total", w.dropped.Load()),
		logpkg.Err(ctx.Err()))
	return ctx.Err()
}

func (w *archiveWriter) stats() ArchiveStats {
	return ArchiveStats{
		Enabled:       true,
		QueueDepth:    len(w.queue),
		QueueCapacity: cap(w.queue),
		Archived:      w.archived.Load(),
		Failed:        w.failed.Load(),
		Dropped:       w.dropped.Load(),
		Batches:       w.batches.Load(),
	}
}
