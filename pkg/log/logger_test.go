package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(level Level, f Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewWriterOutput(&buf)))
	return l, &buf
}

func TestLevelGating(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel, &TextFormatter{})
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN  shown") {
		t.Fatalf("missing warn line: %q", out)
	}
}

func TestJSONFormatterFields(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &JSONFormatter{})
	l.WithComponent("archive").Error("append failed", Err(errors.New("disk full")), Int("queued", 3))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if m["component"] != "archive" || m["error"] != "disk full" || m["level"] != "ERROR" {
		t.Fatalf("unexpected entry: %v", m)
	}
	if m["queued"].(float64) != 3 {
		t.Fatalf("queued: %v", m["queued"])
	}
	if c, _ := m["caller"].(string); !strings.Contains(c, "logger_test.go") {
		t.Fatalf("caller should point at the test, got %q", c)
	}
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{})
	_ = l.With(Str("child", "yes"))
	l.Info("parent")
	if strings.Contains(buf.String(), "child=") {
		t.Fatalf("child field leaked: %q", buf.String())
	}
}

func TestWithContextRequestID(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{})
	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.WithContext(ctx).Info("handled")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("missing request id: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"loud", InfoLevel, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := ApplyConfig(&Config{Level: "error", Format: "json"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestSlogInterop(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{})
	l.(*BaseLogger).Slog().WithGroup("db").Info("opened", "path", "/tmp/x")
	if !strings.Contains(buf.String(), "db.path=/tmp/x") {
		t.Fatalf("missing grouped attr: %q", buf.String())
	}
}
