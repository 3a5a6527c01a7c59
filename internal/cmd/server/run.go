package serverrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgpkg "github.com/Talis-dev/logvault/internal/config"
	"github.com/Talis-dev/logvault/internal/logstore"
	"github.com/Talis-dev/logvault/internal/runtime"
	httpserver "github.com/Talis-dev/logvault/internal/server/http"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
)

// shutdownTimeout bounds the archive drain on exit.
const shutdownTimeout = 10 * time.Second

// SystemCategory tags the server's own lifecycle entries in the store.
const SystemCategory = "system"

type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
	// Ready, when set, receives the HTTP server once it is constructed.
	Ready func(*httpserver.Server)
}

// BuildLogger turns the log section of the config into the process logger,
// falling back to text at the parsed level when the config is unusable.
func BuildLogger(cfg logpkg.Config) logpkg.Logger {
	logger, err := logpkg.ApplyConfig(&cfg)
	if err == nil {
		return logger
	}
	lvl := logpkg.InfoLevel
	if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
		lvl = l
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
}

// Run starts the log store and its HTTP API and blocks until ctx is cancelled.
// On exit the archive queue is drained before storage closes.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	procLogger := opts.Logger
	if procLogger == nil {
		procLogger = BuildLogger(cfg.Log)
	}
	// Pebble and gorm log through the stdlib logger.
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: procLogger})
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.Close(cctx); err != nil {
			procLogger.Error("runtime close", logpkg.Err(err))
		}
	}()

	procLogger.Info("Starting logvault server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("archive", cfg.Archive.Driver),
		logpkg.Str("fsync", cfg.Archive.Fsync),
		logpkg.Str("compression", cfg.Archive.Compression),
		logpkg.Int("capacity", cfg.Memory.Capacity),
		logpkg.Str("timezone", rt.Location().String()),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	// Lifecycle events go into the store itself so they show up next to
	// application entries and in the archive.
	sys := slog.New(logstore.NewHandler(rt.Store(), &logstore.HandlerOptions{
		Level:    slog.LevelInfo,
		Category: SystemCategory,
	}))
	sys.Info("logvault server started",
		"http", cfg.HTTPAddr,
		"archive", cfg.Archive.Driver,
		"capacity", cfg.Memory.Capacity)

	hsrv := httpserver.New(rt, procLogger)
	if opts.Ready != nil {
		opts.Ready(hsrv)
	}
	err = hsrv.ListenAndServe(sctx, cfg.HTTPAddr)
	hsrv.Close()
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	sys.Info("logvault server stopping")
	st := rt.Store().Stats()
	procLogger.Info("logvault server stopped",
		logpkg.F("archived", st.Archive.Archived),
		logpkg.F("failed", st.Archive.Failed),
		logpkg.F("dropped", st.Archive.Dropped))
	return nil
}
