package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/Talis-dev/logvault/internal/config"
	"github.com/Talis-dev/logvault/internal/runtime"
	httpserver "github.com/Talis-dev/logvault/internal/server/http"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

func startServer(t *testing.T) (BaseURLFunc, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Archive.Fsync = "never"
	cfg.Archive.Timezone = "UTC"
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	ts := httptest.NewServer(httpserver.New(rt, logger).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = rt.Close(context.Background())
	})
	return func() string { return ts.URL }, rt
}

func run(t *testing.T, baseURL BaseURLFunc, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestEmitThenGet(t *testing.T) {
	base, _ := startServer(t)
	out, err := run(t, base, "logs", "emit", "--level", "error", "--category", "auth", "--message", "denied", "--data", `{"user":"bob"}`)
	if err != nil {
		t.Fatalf("emit: %v (%s)", err, out)
	}
	if !strings.HasPrefix(out, "id: ") {
		t.Fatalf("emit output: %q", out)
	}
	if _, err := run(t, base, "logs", "emit", "--category", "db", "--message", "connected"); err != nil {
		t.Fatalf("emit: %v", err)
	}

	out, err = run(t, base, "logs", "get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: %q", out)
	}
	if !strings.Contains(lines[0], "ERROR") || !strings.Contains(lines[0], "[auth] denied") || !strings.Contains(lines[0], `{"user":"bob"}`) {
		t.Fatalf("first line: %q", lines[0])
	}

	out, err = run(t, base, "logs", "get", "--level", "info", "--json")
	if err != nil {
		t.Fatalf("get json: %v", err)
	}
	var e logentry.Entry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &e); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if e.Category != "db" || e.Level != logentry.LevelInfo {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestEmitValidation(t *testing.T) {
	base, _ := startServer(t)
	if _, err := run(t, base, "logs", "emit", "--level", "fatal", "--category", "a", "--message", "b"); err == nil {
		t.Fatalf("expected bad level error")
	}
	if _, err := run(t, base, "logs", "emit", "--category", "a", "--message", "b", "--data", "[1]"); err == nil {
		t.Fatalf("expected bad data error")
	}
	if _, err := run(t, base, "logs", "emit", "--category", "a"); err == nil {
		t.Fatalf("expected missing message error")
	}
}

func TestGetServerErrorSurfaces(t *testing.T) {
	base, _ := startServer(t)
	_, err := run(t, base, "logs", "get", "--filter", "level ==")
	if err == nil {
		t.Fatalf("expected filter error")
	}
	if _, err := run(t, base, "logs", "get", "--date", "2024-13-01"); err == nil {
		t.Fatalf("expected date error")
	}
}

func TestDatesAndArchivedGet(t *testing.T) {
	base, rt := startServer(t)
	if _, err := run(t, base, "logs", "emit", "--category", "sys", "--message", "boot"); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := rt.Store().Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	out, err := run(t, base, "logs", "dates")
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	today := time.Now().UTC().Format("2006-01-02")
	if strings.TrimSpace(out) != today {
		t.Fatalf("dates: %q want %q", out, today)
	}
	out, err = run(t, base, "logs", "get", "--date", today)
	if err != nil {
		t.Fatalf("get date: %v", err)
	}
	if !strings.Contains(out, "[sys] boot") {
		t.Fatalf("archived get: %q", out)
	}
}

func TestDeleteCommands(t *testing.T) {
	base, rt := startServer(t)
	s := rt.Store()
	s.Log(logentry.LevelInfo, "a", "one", nil)
	s.Log(logentry.LevelError, "b", "two", nil)
	s.Log(logentry.LevelInfo, "c", "three", nil)

	if _, err := run(t, base, "logs", "delete"); err == nil {
		t.Fatalf("expected --all guard")
	}
	if _, err := run(t, base, "logs", "delete", "--category", "a", "--level", "info"); err == nil {
		t.Fatalf("expected exclusive flags error")
	}
	out, err := run(t, base, "logs", "delete", "--category", "a")
	if err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if !strings.Contains(out, "1 logs") {
		t.Fatalf("delete output: %q", out)
	}
	if _, err := run(t, base, "logs", "delete", "--level", "error"); err != nil {
		t.Fatalf("delete level: %v", err)
	}
	if got := len(s.GetLogs()); got != 1 {
		t.Fatalf("remaining: %d", got)
	}
	if _, err := run(t, base, "logs", "delete", "--all"); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if got := len(s.GetLogs()); got != 0 {
		t.Fatalf("after clear: %d", got)
	}
}

func TestStatsAndCategories(t *testing.T) {
	base, rt := startServer(t)
	rt.Store().Log(logentry.LevelWarning, "net", "slow", nil)
	rt.Store().Log(logentry.LevelInfo, "auth", "ok", nil)

	out, err := run(t, base, "logs", "categories")
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if strings.TrimSpace(out) != "auth\nnet" {
		t.Fatalf("categories: %q", out)
	}
	out, err = run(t, base, "logs", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, `"count": 2`) {
		t.Fatalf("stats: %s", out)
	}
}

func TestTailBacklogWithLimit(t *testing.T) {
	base, rt := startServer(t)
	rt.Store().Log(logentry.LevelInfo, "a", "first", nil)
	rt.Store().Log(logentry.LevelInfo, "b", "second", nil)

	done := make(chan struct{})
	var out string
	var err error
	go func() {
		defer close(done)
		out, err = run(t, base, "logs", "tail", "--backlog", "--category", "b", "--limit", "2")
	}()
	time.Sleep(100 * time.Millisecond)
	rt.Store().Log(logentry.LevelInfo, "a", "skipped", nil)
	rt.Store().Log(logentry.LevelInfo, "b", "third", nil)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("tail did not stop")
	}
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !strings.Contains(out, "second") || !strings.Contains(out, "third") || strings.Contains(out, "skipped") {
		t.Fatalf("tail output: %q", out)
	}
}
