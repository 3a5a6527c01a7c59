package transports

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Talis-dev/logvault/internal/logstore"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// HTTPTransport talks to the /api/logs REST surface.
type HTTPTransport struct {
	baseURL func() string
	client  *http.Client
}

var _ LogsTransport = (*HTTPTransport)(nil)

// NewHTTPTransport returns a transport against baseURL(). A nil client uses
// http.DefaultClient.
func NewHTTPTransport(baseURL func() string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: baseURL, client: client}
}

// apiError is the failure body every endpoint returns.
type apiError struct {
	Error string `json:"error"`
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	u := strings.TrimRight(t.baseURL(), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var e apiError
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("http error: %s: %s", resp.Status, e.Error)
	}
	return fmt.Errorf("http error: %s", resp.Status)
}

func setIf(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func (t *HTTPTransport) List(ctx context.Context, req ListRequest) ([]logentry.Entry, error) {
	q := url.Values{}
	if req.Date != "" {
		q.Set("source", "file")
		q.Set("date", req.Date)
	}
	setIf(q, "level", req.Level)
	setIf(q, "category", req.Category)
	setIf(q, "search", req.Search)
	setIf(q, "filter", req.Filter)
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	var out struct {
		Logs []logentry.Entry `json:"logs"`
	}
	if err := t.do(ctx, http.MethodGet, "/api/logs", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

func (t *HTTPTransport) Dates(ctx context.Context) ([]string, error) {
	var out struct {
		Dates []string `json:"dates"`
	}
	if err := t.do(ctx, http.MethodGet, "/api/logs", url.Values{"source": {"file"}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

func (t *HTTPTransport) Delete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	q := url.Values{}
	setIf(q, "category", req.Category)
	if req.Category == "" {
		setIf(q, "level", req.Level)
	}
	var out struct {
		Message string `json:"message"`
		Deleted *int   `json:"deleted"`
	}
	if err := t.do(ctx, http.MethodDelete, "/api/logs", q, nil, &out); err != nil {
		return DeleteResult{}, err
	}
	res := DeleteResult{Message: out.Message, Deleted: -1}
	if out.Deleted != nil {
		res.Deleted = *out.Deleted
	}
	return res, nil
}

func (t *HTTPTransport) Emit(ctx context.Context, req EmitRequest) (logentry.Entry, error) {
	body := map[string]any{"level": req.Level, "category": req.Category, "message": req.Message}
	if len(req.Data) > 0 {
		body["data"] = req.Data
	}
	var out struct {
		Log logentry.Entry `json:"log"`
	}
	if err := t.do(ctx, http.MethodPost, "/api/logs", nil, body, &out); err != nil {
		return logentry.Entry{}, err
	}
	return out.Log, nil
}

func (t *HTTPTransport) Stats(ctx context.Context) (logstore.Stats, error) {
	var out struct {
		Stats logstore.Stats `json:"stats"`
	}
	err := t.do(ctx, http.MethodGet, "/api/logs/stats", nil, nil, &out)
	return out.Stats, err
}

func (t *HTTPTransport) Categories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	err := t.do(ctx, http.MethodGet, "/api/logs/categories", nil, nil, &out)
	return out.Categories, err
}

func (t *HTTPTransport) Tail(ctx context.Context, req TailRequest, onEntry func(logentry.Entry) error) error {
	q := url.Values{}
	if req.Backlog {
		q.Set("backlog", "true")
	}
	setIf(q, "after", req.After)
	setIf(q, "level", req.Level)
	setIf(q, "category", req.Category)
	setIf(q, "search", req.Search)
	setIf(q, "filter", req.Filter)
	u := strings.TrimRight(t.baseURL(), "/") + "/api/logs/tail"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	hreq.Header.Set("Accept", "text/event-stream")
	resp, err := t.client.Do(hreq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e logentry.Entry
		if err := json.Unmarshal([]byte(line[len("data: "):]), &e); err != nil {
			return fmt.Errorf("decode tail event: %w", err)
		}
		if err := onEntry(e); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return err
	}
	return nil
}
