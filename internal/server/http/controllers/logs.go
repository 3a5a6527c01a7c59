package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Talis-dev/logvault/internal/archive"
	"github.com/Talis-dev/logvault/internal/logstore"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// maxCreateBody bounds POST /api/logs bodies.
const maxCreateBody = 1 << 20

// LogsController serves the /api/logs endpoints.
type LogsController struct {
	store  *logstore.Store
	logger logpkg.Logger
}

func NewLogsController(store *logstore.Store, logger logpkg.Logger) *LogsController {
	return &LogsController{store: store, logger: logger}
}

// RegisterRoutes registers:
// - /api/logs (GET, POST, DELETE)
// - /api/logs/categories, /api/logs/stats (GET)
// - /api/logs/tail (GET, server-sent events)
func (c *LogsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/logs", c.handleLogs)
	mux.HandleFunc("/api/logs/categories", c.handleCategories)
	mux.HandleFunc("/api/logs/stats", c.handleStats)
	mux.HandleFunc("/api/logs/tail", c.handleTail)
}

func (c *LogsController) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		c.handleGet(w, r)
	case http.MethodPost:
		c.handleCreate(w, r)
	case http.MethodDelete:
		c.handleDelete(w, r)
	default:
		methodNotAllowed(w)
	}
}

func queryFromRequest(r *http.Request) logstore.Query {
	q := r.URL.Query()
	return logstore.Query{
		Level:    q.Get("level"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Filter:   q.Get("filter"),
	}
}

// narrow applies the request's query and limit. The limit keeps the newest
// entries.
func narrow(r *http.Request, entries []logentry.Entry) ([]logentry.Entry, error) {
	out, err := queryFromRequest(r).Apply(entries)
	if err != nil {
		return nil, err
	}
	if limit := parseLimit(r.URL.Query().Get("limit")); limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// handleGet serves memory reads (default), the archived date list, or one
// archived day.
func (c *LogsController) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch source := q.Get("source"); source {
	case "", "memory":
		logs, err := narrow(r, c.store.GetLogs())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, memoryLogsResp{Success: true, Source: "memory", Count: len(logs), Logs: logs})
	case "file":
		date := q.Get("date")
		if date == "" {
			dates, err := c.store.GetAvailableDates(r.Context())
			if err != nil {
				c.storageError(w, "list archived dates", err)
				return
			}
			out := make([]string, len(dates))
			for i, d := range dates {
				out[i] = d.String()
			}
			writeJSON(w, http.StatusOK, datesResp{Success: true, Dates: out})
			return
		}
		d, err := archive.ParseDate(date)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		entries, err := c.store.ReadLogsFromFile(r.Context(), d)
		if err != nil {
			c.storageError(w, "read archived logs", err)
			return
		}
		logs, err := narrow(r, entries)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, fileLogsResp{Success: true, Date: d.String(), Count: len(logs), Logs: logs})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid source %q; use memory or file", source))
	}
}

func (c *LogsController) storageError(w http.ResponseWriter, op string, err error) {
	c.logger.Error("archive read failed", logpkg.Str("op", op), logpkg.Err(err))
	msg := "Failed to " + op
	if errors.Is(err, archive.ErrStorageUnavailable) {
		msg += ": archive unavailable"
	}
	writeError(w, http.StatusInternalServerError, msg)
}

func (c *LogsController) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createLogReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	level, err := logentry.ParseLevel(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Category) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "category and message are required")
		return
	}
	e := c.store.Log(level, req.Category, req.Message, req.Data)
	writeJSON(w, http.StatusCreated, createLogResp{Success: true, Log: e})
}

// handleDelete removes memory entries by category, by level, or all of them.
// The archive is never touched.
func (c *LogsController) handleDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if category := q.Get("category"); category != "" {
		n := c.store.DeleteLogsByCategory(category)
		writeJSON(w, http.StatusOK, deleteResp{
			Success: true,
			Message: fmt.Sprintf("%d logs from category %q deleted", n, category),
			Deleted: &n,
		})
		return
	}
	if level := q.Get("level"); level != "" {
		n := c.store.DeleteLogsByLevel(level)
		writeJSON(w, http.StatusOK, deleteResp{
			Success: true,
			Message: fmt.Sprintf("%d logs with level %q deleted", n, level),
			Deleted: &n,
		})
		return
	}
	c.store.ClearLogs()
	writeJSON(w, http.StatusOK, deleteResp{Success: true, Message: "In-memory logs cleared"})
}

func (c *LogsController) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "categories": c.store.Categories()})
}

func (c *LogsController) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": c.store.Stats()})
}
