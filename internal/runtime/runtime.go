package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Talis-dev/logvault/internal/archive"
	"github.com/Talis-dev/logvault/internal/archive/sqlarchive"
	cfgpkg "github.com/Talis-dev/logvault/internal/config"
	"github.com/Talis-dev/logvault/internal/logstore"
	pebblestore "github.com/Talis-dev/logvault/internal/storage/pebble"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime wires the archive driver and the log store for a single node.
type Runtime struct {
	db     *pebblestore.DB // nil unless the pebble driver is selected
	arch   archive.Archive
	store  *logstore.Store
	loc    *time.Location
	config cfgpkg.Config
	logger logpkg.Logger
}

// Open validates the config, opens the archive and starts the store.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	rt := &Runtime{config: cfg, logger: logger, loc: loc}
	archLogger := logger.WithComponent("archive")
	switch cfg.Archive.Driver {
	case cfgpkg.DriverSQLite:
		a, err := sqlarchive.Open(sqlarchive.Options{Path: cfg.SQLitePath(), Location: loc, Logger: archLogger})
		if err != nil {
			return nil, err
		}
		rt.arch = a
	default:
		fsync, _ := pebblestore.ParseFsyncMode(cfg.Archive.Fsync)
		codec, _ := archive.ParseCodec(cfg.Archive.Compression)
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       cfg.DataDir,
			Fsync:         fsync,
			FsyncInterval: time.Duration(cfg.Archive.FsyncInterval),
			Metrics:       slowCommitLogger{logger: archLogger, threshold: slowCommit},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", archive.ErrStorageUnavailable, err)
		}
		a, err := archive.NewPebble(db, archive.PebbleOptions{Location: loc, Codec: codec, Logger: archLogger})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.db, rt.arch = db, a
	}

	rt.store = logstore.New(logstore.Options{
		Capacity:     cfg.Memory.Capacity,
		Archive:      rt.arch,
		QueueSize:    cfg.Archive.QueueSize,
		WriteTimeout: time.Duration(cfg.Archive.WriteTimeout),
		Logger:       logger.WithComponent("logstore"),
	})
	return rt, nil
}

// slowCommit is the archive commit latency worth a warning.
const slowCommit = time.Second

// slowCommitLogger reports Pebble commits slower than threshold.
type slowCommitLogger struct {
	logger    logpkg.Logger
	threshold time.Duration
}

func (l slowCommitLogger) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	if elapsed < l.threshold {
		return
	}
	l.logger.Warn("slow archive commit",
		logpkg.Dur("elapsed", elapsed),
		logpkg.Int("entries", numOps),
		logpkg.Int("bytes", bytes))
}

// Close drains the archive writer, then closes the archive and DB. The store
// returns only once its writer has exited, even when ctx expires first, so
// closing storage afterwards is always safe.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.store != nil {
		if err := r.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain archive queue: %w", err))
		}
	}
	if r.arch != nil {
		errs = append(errs, r.arch.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

// CheckHealth pings the archive.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.arch == nil {
		return errors.New("archive not open")
	}
	return r.arch.Ping(ctx)
}

func (r *Runtime) Store() *logstore.Store   { return r.store }
func (r *Runtime) Archive() archive.Archive { return r.arch }
func (r *Runtime) Config() cfgpkg.Config    { return r.config }
func (r *Runtime) Logger() logpkg.Logger    { return r.logger }

// Location is the zone partition dates are computed in.
func (r *Runtime) Location() *time.Location { return r.loc }
