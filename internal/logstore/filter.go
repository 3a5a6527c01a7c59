package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Talis-dev/logvault/pkg/logentry"
)

// ErrInvalidFilter is returned when a filter expression does not compile.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter is a compiled CEL predicate over entries. The zero Filter matches
// everything.
//
// Variables: level, category, message (string), data (map), ts_ms and
// now_ms (int, unix milliseconds).
type Filter struct {
	prog    cel.Program
	enabled bool
}

// CompileFilter compiles expr. An empty expression yields a disabled filter.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("level", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, fmt.Errorf("%w: %w", ErrInvalidFilter, iss.Err())
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, fmt.Errorf("%w: %w", ErrInvalidFilter, iss2.Err())
	}
	if out := checked.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return Filter{}, fmt.Errorf("%w: expression must evaluate to bool, got %s", ErrInvalidFilter, out)
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return Filter{prog: prog, enabled: true}, nil
}

func (f Filter) Enabled() bool { return f.enabled }

// Match evaluates the filter against e. Evaluation errors count as no match.
func (f Filter) Match(e logentry.Entry) bool {
	if !f.enabled {
		return true
	}
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"level":    string(e.Level),
		"category": e.Category,
		"message":  e.Message,
		"data":     data,
		"ts_ms":    e.TimestampMs(),
		"now_ms":   time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Query narrows a result set. Empty fields, and "all" for Level or
// Category, do not filter.
type Query struct {
	Level    string
	Category string
	// Search is a case-insensitive substring of message, category or data.
	Search string
	// Filter is a CEL expression, see Filter.
	Filter string
}

// IsZero reports whether q filters nothing.
func (q Query) IsZero() bool {
	return unset(q.Level) && unset(q.Category) && q.Search == "" && strings.TrimSpace(q.Filter) == ""
}

func unset(s string) bool { return s == "" || s == "all" }

// Matcher is a Query with its filter compiled, for repeated use.
type Matcher struct {
	level    string
	category string
	search   string
	filter   Filter
}

// Compile validates q and compiles its filter once.
func (q Query) Compile() (Matcher, error) {
	f, err := CompileFilter(q.Filter)
	if err != nil {
		return Matcher{}, err
	}
	m := Matcher{filter: f, search: strings.ToLower(q.Search)}
	if !unset(q.Level) {
		m.level = q.Level
	}
	if !unset(q.Category) {
		m.category = q.Category
	}
	return m, nil
}

// Match reports whether e passes every condition.
func (m Matcher) Match(e logentry.Entry) bool {
	if m.level != "" && string(e.Level) != m.level {
		return false
	}
	if m.category != "" && e.Category != m.category {
		return false
	}
	if m.search != "" && !containsFold(e, m.search) {
		return false
	}
	return m.filter.Match(e)
}

// Apply returns the entries matching m, keeping their order.
func (m Matcher) Apply(entries []logentry.Entry) []logentry.Entry {
	out := make([]logentry.Entry, 0, len(entries))
	for _, e := range entries {
		if m.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Apply returns the entries matching q, keeping their order.
func (q Query) Apply(entries []logentry.Entry) ([]logentry.Entry, error) {
	if q.IsZero() {
		return entries, nil
	}
	m, err := q.Compile()
	if err != nil {
		return nil, err
	}
	return m.Apply(entries), nil
}

func containsFold(e logentry.Entry, lower string) bool {
	if strings.Contains(strings.ToLower(e.Message), lower) ||
		strings.Contains(strings.ToLower(e.Category), lower) {
		return true
	}
	if len(e.Data) == 0 {
		return false
	}
	b, err := json.Marshal(e.Data)
	return err == nil && strings.Contains(strings.ToLower(string(b)), lower)
}
