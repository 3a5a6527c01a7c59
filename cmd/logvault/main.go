package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/Talis-dev/logvault/internal/cmd/client"
	serverrun "github.com/Talis-dev/logvault/internal/cmd/server"
	cfgpkg "github.com/Talis-dev/logvault/internal/config"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
)

func main() {
	// CLI logger; `server start` replaces it with the configured one.
	level, err := logpkg.ParseLevel(os.Getenv("LOGVAULT_LOG_LEVEL"))
	if err != nil {
		level = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	rootCmd := clientcmd.NewRoot(apiURL)
	rootCmd.Short = "logvault log store"
	rootCmd.Long = "logvault keeps a bounded window of recent log entries in memory and archives every entry to daily partitions."

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the logvault HTTP server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := serverrun.Run(cmd.Context(), serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("config", os.Getenv("LOGVAULT_CONFIG"), "Config file (.json, .yaml or .yml)")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("http", ":8080", "HTTP listen address")
	f.String("archive", cfgpkg.DriverPebble, "Archive driver: pebble|sqlite")
	f.String("fsync", "interval", "Fsync mode (pebble): always|interval|never")
	f.Duration("fsync-interval", 5*time.Millisecond, "When --fsync=interval, group-commit window")
	f.String("compression", "zstd", "Archived record codec (pebble): zstd|none")
	f.Int("capacity", 1000, "In-memory window size")
	f.String("timezone", "Local", "Timezone for daily partitions (IANA name, UTC or Local)")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", logpkg.Err(err))
		os.Exit(1)
	}
}

// loadConfig layers file, then LOGVAULT_* env, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("http") {
		cfg.HTTPAddr, _ = f.GetString("http")
	}
	if f.Changed("archive") {
		cfg.Archive.Driver, _ = f.GetString("archive")
	}
	if f.Changed("fsync") {
		cfg.Archive.Fsync, _ = f.GetString("fsync")
	}
	if f.Changed("fsync-interval") {
		d, _ := f.GetDuration("fsync-interval")
		cfg.Archive.FsyncInterval = cfgpkg.Duration(d)
	}
	if f.Changed("compression") {
		cfg.Archive.Compression, _ = f.GetString("compression")
	}
	if f.Changed("capacity") {
		cfg.Memory.Capacity, _ = f.GetInt("capacity")
	}
	if f.Changed("timezone") {
		cfg.Archive.Timezone, _ = f.GetString("timezone")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Log.Format, _ = f.GetString("log-format")
	}
	return cfg, nil
}

func apiURL() string {
	return clientcmd.BaseURLFromEnv()
}
