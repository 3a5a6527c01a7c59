package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/logvault" {
		t.Fatalf("want /custom/data/logvault, got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	// UserHomeDir fails on unix when HOME is empty.
	t.Setenv("HOME", "")
	if got := DefaultDataDir(); got != "./data" {
		t.Fatalf("want ./data fallback, got %s", got)
	}
}

func TestDefaultDataDirShape(t *testing.T) {
	got := DefaultDataDir()
	if got == "" {
		t.Fatalf("empty data dir")
	}
	if !filepath.IsAbs(got) && !strings.HasPrefix(got, "./") {
		t.Fatalf("want absolute or ./ path, got %s", got)
	}
	if base := strings.ToLower(filepath.Base(got)); base != "logvault" && base != ".logvault" && base != "data" {
		t.Fatalf("unexpected data dir %s", got)
	}
	if again := DefaultDataDir(); again != got {
		t.Fatalf("not stable: %s vs %s", got, again)
	}
}

func TestIsDir(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing directory", ".", true},
		{"missing path", "/non/existent/path/that/does/not/exist", false},
		{"regular file", os.Args[0], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDir(tt.path); got != tt.want {
				t.Fatalf("isDir(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
