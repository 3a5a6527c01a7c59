package serverrun

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	cfgpkg "github.com/Talis-dev/logvault/internal/config"
	httpserver "github.com/Talis-dev/logvault/internal/server/http"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestBuildLoggerFallback(t *testing.T) {
	if BuildLogger(logpkg.Config{Level: "debug", Format: "json"}) == nil {
		t.Fatalf("nil logger")
	}
	l := BuildLogger(logpkg.Config{Level: "warn", Format: "xml"})
	if l == nil || l.GetLevel() != logpkg.WarnLevel {
		t.Fatalf("fallback should keep parsed level")
	}
}

func TestRunServesAndStops(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.HTTPAddr = freeAddr(t)
	cfg.Archive.Fsync = "never"
	cfg.Log = logpkg.Config{Level: "error", Format: "text"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Config: cfg,
			Logger: logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{})),
			Ready:  func(*httpserver.Server) { close(ready) },
		})
	}()
	<-ready

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + cfg.HTTPAddr + "/v1/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}

	resp, err = http.Get("http://" + cfg.HTTPAddr + "/api/logs?category=" + SystemCategory)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list struct {
		Logs []logentry.Entry `json:"logs"`
	}
	err = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Logs) != 1 || list.Logs[0].Message != "logvault server started" {
		t.Fatalf("system entries: %+v", list.Logs)
	}
	if list.Logs[0].Data["archive"] != cfgpkg.DriverPebble {
		t.Fatalf("system entry data: %+v", list.Logs[0].Data)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Archive.Driver = "tape"
	err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))})
	if err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("expected config error, got %v", err)
	}
}
