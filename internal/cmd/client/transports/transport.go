package transports

import (
	"context"

	"github.com/Talis-dev/logvault/internal/logstore"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// ListRequest selects memory (Date empty) or one archived day.
type ListRequest struct {
	Date     string
	Level    string
	Category string
	Search   string
	Filter   string
	Limit    int
}

// DeleteRequest removes memory entries by category, by level, or all when
// both are empty.
type DeleteRequest struct {
	Category string
	Level    string
}

// DeleteResult reports what the server removed.
type DeleteResult struct {
	Message string
	// Deleted is -1 for a full clear.
	Deleted int
}

// EmitRequest creates one entry.
type EmitRequest struct {
	Level    string
	Category string
	Message  string
	Data     map[string]any
}

// TailRequest describes a live tail.
type TailRequest struct {
	Backlog  bool
	After    string
	Level    string
	Category string
	Search   string
	Filter   string
}

// LogsTransport abstracts how the CLI reaches a logvault server.
type LogsTransport interface {
	List(ctx context.Context, req ListRequest) ([]logentry.Entry, error)
	Dates(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, req DeleteRequest) (DeleteResult, error)
	Emit(ctx context.Context, req EmitRequest) (logentry.Entry, error)
	Stats(ctx context.Context) (logstore.Stats, error)
	Categories(ctx context.Context) ([]string, error)
	// Tail calls onEntry for each streamed entry until ctx ends or onEntry
	// returns an error.
	Tail(ctx context.Context, req TailRequest, onEntry func(logentry.Entry) error) error
}
