package logentry

import (
	"errors"
	"fmt"
	"time"

	"github.com/Talis-dev/logvault/pkg/id"
)

// Level is the severity tag of an entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelDebug   Level = "debug"
)

// Levels lists every accepted level in display order.
var Levels = []Level{LevelInfo, LevelSuccess, LevelWarning, LevelError, LevelDebug}

// ErrInvalidLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel validates s as one of the known levels. Matching is exact.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Entry is one logged event.
type Entry struct {
	ID        id.ID          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// New builds an entry whose timestamp is the millisecond embedded in eid.
// Empty data maps are normalized to nil.
func New(eid id.ID, level Level, category, message string, data map[string]any) Entry {
	if len(data) == 0 {
		data = nil
	}
	return Entry{
		ID:        eid,
		Timestamp: eid.Time(),
		Level:     level,
		Category:  category,
		Message:   message,
		Data:      data,
	}
}

// TimestampMs returns the entry time in Unix milliseconds.
func (e Entry) TimestampMs() int64 { return e.Timestamp.UnixMilli() }
