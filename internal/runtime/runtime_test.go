package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Talis-dev/logvault/internal/archive"
	cfgpkg "github.com/Talis-dev/logvault/internal/config"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

func testConfig(t *testing.T, driver string) cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Archive.Driver = driver
	cfg.Archive.Fsync = "never"
	cfg.Archive.Timezone = "UTC"
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	for _, driver := range []string{cfgpkg.DriverPebble, cfgpkg.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			rt, err := Open(Options{Config: testConfig(t, driver), Logger: logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))})
			if err != nil {
				t.Fatalf("open runtime: %v", err)
			}
			ctx := context.Background()
			if err := rt.CheckHealth(ctx); err != nil {
				t.Fatalf("health: %v", err)
			}
			e := rt.Store().Log(logentry.LevelInfo, "boot", "ready", nil)
			if err := rt.Store().Flush(ctx); err != nil {
				t.Fatalf("flush: %v", err)
			}
			got, err := rt.Store().ReadLogsFromFile(ctx, archive.DateOf(e.Timestamp, rt.Location()))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 1 || got[0].ID != e.ID {
				t.Fatalf("entry not archived: %+v", got)
			}
			if err := rt.Close(ctx); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	}
}

func TestSQLitePathUnderDataDir(t *testing.T) {
	cfg := testConfig(t, cfgpkg.DriverSQLite)
	if want := filepath.Join(cfg.DataDir, "archive.db"); cfg.SQLitePath() != want {
		t.Fatalf("sqlite path: %s", cfg.SQLitePath())
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "cassandra")
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func quiet() logpkg.Logger { return logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{})) }

func TestBurstIsFullyArchived(t *testing.T) {
	for _, driver := range []string{cfgpkg.DriverPebble, cfgpkg.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			cfg.Archive.Fsync = "interval"
			rt, err := Open(Options{Config: cfg, Logger: quiet()})
			if err != nil {
				t.Fatalf("open runtime: %v", err)
			}
			defer rt.Close(context.Background())

			const n = 5000
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rt.Store().Log(logentry.LevelInfo, "burst", fmt.Sprint(i), nil)
				}(i)
			}
			wg.Wait()
			ctx := context.Background()
			if err := rt.Store().Flush(ctx); err != nil {
				t.Fatalf("flush: %v", err)
			}

			dates, err := rt.Store().GetAvailableDates(ctx)
			if err != nil {
				t.Fatalf("dates: %v", err)
			}
			archived := 0
			for _, d := range dates {
				got, err := rt.Store().ReadLogsFromFile(ctx, d)
				if err != nil {
					t.Fatalf("read %s: %v", d, err)
				}
				for i := 1; i < len(got); i++ {
					if got[i].ID.Compare(got[i-1].ID) <= 0 {
						t.Fatalf("%s: archive order broken at %d", d, i)
					}
				}
				archived += len(got)
			}
			st := rt.Store().Stats().Archive
			if archived != n || st.Dropped != 0 || st.Failed != 0 {
				t.Fatalf("logged=%d archived=%d stats=%+v", n, archived, st)
			}
			if st.Batches >= n {
				t.Fatalf("expected queued entries to share commits, got %d batches", st.Batches)
			}
		})
	}
}

func TestCloseUnderLoadDoesNotUseClosedStorage(t *testing.T) {
	cfg := testConfig(t, cfgpkg.DriverPebble)
	cfg.Archive.Fsync = "always"
	rt, err := Open(Options{Config: cfg, Logger: quiet()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	for i := 0; i < 2000; i++ {
		rt.Store().Log(logentry.LevelInfo, "load", fmt.Sprint(i), nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	// Either outcome is fine; the writer must be gone before Pebble closes.
	if err := rt.Close(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("close: %v", err)
	}
	st := rt.Store().Stats().Archive
	if st.Archived+st.Failed+st.Dropped != 2000 {
		t.Fatalf("entries unaccounted for: %+v", st)
	}
	// Logging after close stays memory-only.
	rt.Store().Log(logentry.LevelInfo, "load", "late", nil)
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSlowCommitLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logpkg.NewLogger(logpkg.WithOutput(logpkg.NewWriterOutput(&buf)), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	l := slowCommitLogger{logger: logger, threshold: 100 * time.Millisecond}
	l.ObserveBatchCommit(time.Millisecond, 3, 120)
	if buf.Len() != 0 {
		t.Fatalf("fast commit logged: %s", buf.String())
	}
	l.ObserveBatchCommit(time.Second, 256, 40960)
	if !strings.Contains(buf.String(), "slow archive commit") {
		t.Fatalf("slow commit not logged: %q", buf.String())
	}
}
