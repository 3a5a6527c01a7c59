package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Talis-dev/logvault/pkg/id"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// heartbeatInterval keeps idle tail connections open through proxies.
var heartbeatInterval = 15 * time.Second

// sseSink writes entries as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
}

// Send writes one "id: <id>\ndata: <json>\n\n" event.
func (s sseSink) Send(e logentry.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("id: " + e.ID.String() + "\ndata: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n\n"))
	return err
}

// Ping writes an SSE comment line.
func (s sseSink) Ping() error {
	_, err := s.w.Write([]byte(": ping\n\n"))
	return err
}

func (s sseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// handleTail streams new in-memory entries until the client goes away.
//
// Query: after=<id> (or Last-Event-ID) resumes after a known entry, backlog=true starts with
// everything in memory, filter/level/category/search narrow the stream.
func (c *LogsController) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	query := queryFromRequest(r)
	// Compiled once; a bad filter is a 400, not a dead stream.
	matcher, err := query.Compile()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cursor := c.store.LastID()
	if parseBool(q.Get("backlog")) {
		cursor = id.Zero
	}
	after := q.Get("after")
	if after == "" {
		after = r.Header.Get("Last-Event-ID")
	}
	if after != "" {
		v, err := id.Parse(after)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after id")
			return
		}
		cursor = v
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w}
	sink.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	ctx := r.Context()
	for {
		changed := c.store.Changes()
		batch := c.store.Since(cursor)
		if len(batch) > 0 {
			cursor = batch[len(batch)-1].ID
			matched := matcher.Apply(batch)
			for _, e := range matched {
				if err := sink.Send(e); err != nil {
					return
				}
			}
			if len(matched) > 0 {
				sink.Flush()
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-changed:
		case <-heartbeat.C:
			if err := sink.Ping(); err != nil {
				return
			}
			sink.Flush()
		}
	}
}
