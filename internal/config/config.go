package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Talis-dev/logvault/internal/archive"
	pebblestore "github.com/Talis-dev/logvault/internal/storage/pebble"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
)

const (
	DriverPebble = "pebble"
	DriverSQLite = "sqlite"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir  string        `json:"dataDir" yaml:"dataDir"`
	HTTPAddr string        `json:"httpAddr" yaml:"httpAddr"`
	Memory   MemoryConfig  `json:"memory" yaml:"memory"`
	Archive  ArchiveConfig `json:"archive" yaml:"archive"`
	Log      logpkg.Config `json:"log" yaml:"log"`
}

// MemoryConfig sizes the in-memory window.
type MemoryConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

// ArchiveConfig selects and tunes the archive driver.
type ArchiveConfig struct {
	Driver        string   `json:"driver" yaml:"driver"`
	Fsync         string   `json:"fsync" yaml:"fsync"`
	FsyncInterval Duration `json:"fsyncInterval" yaml:"fsyncInterval"`
	Compression   string   `json:"compression" yaml:"compression"`
	QueueSize     int      `json:"queueSize" yaml:"queueSize"`
	WriteTimeout  Duration `json:"writeTimeout" yaml:"writeTimeout"`
	// Timezone is an IANA name, "UTC" or "Local". Empty means Local.
	Timezone string `json:"timezone" yaml:"timezone"`
	// SQLitePath defaults to <dataDir>/archive.db.
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`
}

// Duration reads and writes as a Go duration string ("5s").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		HTTPAddr: ":8080",
		Memory:   MemoryConfig{Capacity: 1000},
		Archive: ArchiveConfig{
			Driver:        DriverPebble,
			Fsync:         "interval",
			FsyncInterval: Duration(5 * time.Millisecond),
			Compression:   "zstd",
			QueueSize:     16384,
			WriteTimeout:  Duration(5 * time.Second),
			Timezone:      "Local",
		},
		Log: logpkg.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// the defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: dataDir is required")
	}
	if c.Memory.Capacity <= 0 {
		return fmt.Errorf("config: memory.capacity must be positive, got %d", c.Memory.Capacity)
	}
	switch c.Archive.Driver {
	case DriverPebble, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown archive.driver %q", c.Archive.Driver)
	}
	if _, err := pebblestore.ParseFsyncMode(c.Archive.Fsync); err != nil {
		return fmt.Errorf("config: archive.fsync: %w", err)
	}
	if _, err := archive.ParseCodec(c.Archive.Compression); err != nil {
		return fmt.Errorf("config: archive.compression: %w", err)
	}
	if c.Archive.QueueSize <= 0 {
		return fmt.Errorf("config: archive.queueSize must be positive, got %d", c.Archive.QueueSize)
	}
	if c.Archive.WriteTimeout <= 0 {
		return errors.New("config: archive.writeTimeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := logpkg.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// Location resolves the archive time zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Archive.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Archive.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: archive.timezone: %w", err)
	}
	return loc, nil
}

// SQLitePath returns the SQLite archive file, defaulting under DataDir.
func (c Config) SQLitePath() string {
	if c.Archive.SQLitePath != "" {
		return c.Archive.SQLitePath
	}
	return filepath.Join(c.DataDir, "archive.db")
}
