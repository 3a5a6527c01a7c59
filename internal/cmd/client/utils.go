package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	transports "github.com/Talis-dev/logvault/internal/cmd/client/transports"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// BaseURLFromEnv returns LOGVAULT_HTTP or http://127.0.0.1:8080.
func BaseURLFromEnv() string {
	if v := os.Getenv("LOGVAULT_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func newTransport(baseURL BaseURLFunc) transports.LogsTransport {
	return transports.NewHTTPTransport(baseURL, nil)
}

// printEntry writes one entry either as a JSON line or as
// "time LEVEL [category] message data".
func printEntry(w io.Writer, e logentry.Entry, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(e)
	}
	line := fmt.Sprintf("%s %-7s [%s] %s",
		e.Timestamp.Format("2006-01-02 15:04:05.000"),
		strings.ToUpper(string(e.Level)), e.Category, e.Message)
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err == nil {
			line += " " + string(b)
		}
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseData decodes the --data flag, which must be a JSON object.
func parseData(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("invalid --data; expected a JSON object: %w", err)
	}
	return m, nil
}
