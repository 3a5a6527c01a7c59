// Package log provides logvault's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by log/slog through a
// bridge handler that formats entries (text or JSON) and writes them to one
// or more outputs.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("archive"), log.Str("driver", "pebble"))
//	l.Info("archive opened", log.Int("partitions", 3))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (level, text or
// JSON format, optional file output).
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by storage
// libraries) through a Logger. Slog returns a *slog.Logger sharing the same
// pipeline for code that expects the slog API.
package log
