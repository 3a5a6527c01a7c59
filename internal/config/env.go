package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays LOGVAULT_* environment variables onto cfg. Unparseable
// numbers and durations are ignored.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(name string, dst *Duration) {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}

	str("LOGVAULT_DATA_DIR", &cfg.DataDir)
	str("LOGVAULT_HTTP_ADDR", &cfg.HTTPAddr)
	num("LOGVAULT_MEMORY_CAPACITY", &cfg.Memory.Capacity)

	str("LOGVAULT_ARCHIVE_DRIVER", &cfg.Archive.Driver)
	str("LOGVAULT_ARCHIVE_FSYNC", &cfg.Archive.Fsync)
	dur("LOGVAULT_ARCHIVE_FSYNC_INTERVAL", &cfg.Archive.FsyncInterval)
	str("LOGVAULT_ARCHIVE_COMPRESSION", &cfg.Archive.Compression)
	num("LOGVAULT_ARCHIVE_QUEUE_SIZE", &cfg.Archive.QueueSize)
	dur("LOGVAULT_ARCHIVE_WRITE_TIMEOUT", &cfg.Archive.WriteTimeout)
	str("LOGVAULT_ARCHIVE_TIMEZONE", &cfg.Archive.Timezone)
	str("LOGVAULT_ARCHIVE_SQLITE_PATH", &cfg.Archive.SQLitePath)

	str("LOGVAULT_LOG_LEVEL", &cfg.Log.Level)
	str("LOGVAULT_LOG_FORMAT", &cfg.Log.Format)
	str("LOGVAULT_LOG_FILE", &cfg.Log.File)
}
