package archive

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-10-19", "2026-10-19", true},
		{"2024-02-29", "2024-02-29", true},
		{"2023-02-29", "", false},
		{"2026-1-9", "", false},
		{"19/10/2026", "", false},
		{"", "", false},
		{"2026-10-19T00:00:00Z", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if !tt.ok {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("want ErrInvalidDate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if d.String() != tt.want {
				t.Fatalf("got %s want %s", d, tt.want)
			}
		})
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	// 23:30 UTC is already the next day in UTC+2.
	ts := time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC)
	plus2 := time.FixedZone("plus2", 2*60*60)
	if got := DateOf(ts, time.UTC).String(); got != "2026-10-19" {
		t.Fatalf("utc: %s", got)
	}
	if got := DateOf(ts, plus2).String(); got != "2026-10-20" {
		t.Fatalf("plus2: %s", got)
	}
}

func TestDateStringSortsChronologically(t *testing.T) {
	dates := []Date{NewDate(2026, 1, 2), NewDate(2025, 12, 31), NewDate(2026, 10, 1), NewDate(2026, 9, 30)}
	strs := make([]string, len(dates))
	for i, d := range dates {
		strs[i] = d.String()
	}
	sort.Strings(strs)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Compare(dates[j]) < 0 })
	for i := range dates {
		if dates[i].String() != strs[i] {
			t.Fatalf("order mismatch at %d: %s vs %s", i, dates[i], strs[i])
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal([]Date{NewDate(2026, 10, 19)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `["2026-10-19"]` {
		t.Fatalf("got %s", b)
	}
	var out []Date
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out[0] != NewDate(2026, 10, 19) {
		t.Fatalf("round trip: %v", out[0])
	}
}
