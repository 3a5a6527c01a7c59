// Package sqlarchive is an archive driver keeping one SQLite row per entry.
package sqlarchive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Talis-dev/logvault/internal/archive"
	logpkg "github.com/Talis-dev/logvault/pkg/log"
	"github.com/Talis-dev/logvault/pkg/id"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// row is the persisted form of an entry. RowID carries insertion order.
type row struct {
	RowID       uint64 `gorm:"column:row_id;primaryKey;autoIncrement"`
	EntryID     string `gorm:"column:entry_id;size:32;uniqueIndex"`
	Day         string `gorm:"column:day;size:10;index"`
	TimestampMs int64  `gorm:"column:ts_ms"`
	Level       string `gorm:"column:level"`
	Category    string `gorm:"column:category"`
	Message     string `gorm:"column:message"`
	Data        string `gorm:"column:data"`
}

func (row) TableName() string { return "archive_entries" }

// Options configures the SQLite driver.
type Options struct {
	// Path of the database file.
	Path     string
	Location *time.Location
	Logger   logpkg.Logger
	// SlowQuery is the threshold above which gorm reports a statement.
	SlowQuery time.Duration
}

// Archive implements archive.Archive on SQLite through gorm.
type Archive struct {
	db     *gorm.DB
	loc    *time.Location
	logger logpkg.Logger
	mu     sync.Mutex
}

var _ archive.Archive = (*Archive)(nil)

// Open opens (creating if needed) the database at opts.Path and migrates
// the entry table.
func Open(opts Options) (*Archive, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: sqlite path required", archive.ErrStorageUnavailable)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("archive")
	}
	slow := opts.SlowQuery
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	gl := gormlogger.New(logpkg.ToStdLogger(logger), gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", archive.ErrStorageUnavailable, opts.Path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", archive.ErrStorageUnavailable, err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" coherent.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&row{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate: %w", archive.ErrStorageUnavailable, err)
	}
	return &Archive{db: db, loc: loc, logger: logger}, nil
}

// Location returns the zone used for partition boundaries.
func (a *Archive) Location() *time.Location { return a.loc }

func (a *Archive) Append(ctx context.Context, e logentry.Entry) error {
	return a.AppendBatch(ctx, []logentry.Entry{e})
}

// insertBatch bounds the rows per INSERT statement.
const insertBatch = 200

// AppendBatch inserts entries in one transaction, in slice order.
func (a *Archive) AppendBatch(ctx context.Context, entries []logentry.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		r, err := a.toRow(e)
		if err != nil {
			return err
		}
		rows = append(rows, r)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.db.WithContext(ctx).CreateInBatches(&rows, insertBatch).Error; err != nil {
		return fmt.Errorf("%w: append %d entries: %w", archive.ErrStorageUnavailable, len(rows), err)
	}
	return nil
}

func (a *Archive) toRow(e logentry.Entry) (row, error) {
	r := row{
		EntryID:     e.ID.String(),
		Day:         archive.DateOf(e.Timestamp, a.loc).String(),
		TimestampMs: e.TimestampMs(),
		Level:       string(e.Level),
		Category:    e.Category,
		Message:     e.Message,
	}
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return row{}, fmt.Errorf("archive: encode data of %s: %w", e.ID, err)
		}
		r.Data = string(b)
	}
	return r, nil
}

// ListPartitions returns the distinct days holding rows, newest first.
func (a *Archive) ListPartitions(ctx context.Context) ([]archive.Date, error) {
	var days []string
	err := a.db.WithContext(ctx).Model(&row{}).
		Distinct().
		Order("day DESC").
		Pluck("day", &days).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", archive.ErrStorageUnavailable, err)
	}
	dates := make([]archive.Date, 0, len(days))
	for _, s := range days {
		d, err := archive.ParseDate(s)
		if err != nil {
			a.logger.Warn("ignoring malformed day column", logpkg.Str("day", s))
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// ReadPartition returns the rows of d in insertion order.
func (a *Archive) ReadPartition(ctx context.Context, d archive.Date) ([]logentry.Entry, error) {
	var rows []row
	err := a.db.WithContext(ctx).
		Where("day = ?", d.String()).
		Order("row_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", archive.ErrStorageUnavailable, d, err)
	}
	entries := make([]logentry.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			a.logger.Warn("skipping unreadable archive row",
				logpkg.Str("date", d.String()),
				logpkg.F("row_id", r.RowID),
				logpkg.Err(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r row) entry() (logentry.Entry, error) {
	eid, err := id.Parse(r.EntryID)
	if err != nil {
		return logentry.Entry{}, err
	}
	e := logentry.Entry{
		ID:        eid,
		Timestamp: time.UnixMilli(r.TimestampMs),
		Level:     logentry.Level(r.Level),
		Category:  r.Category,
		Message:   r.Message,
	}
	if r.Data != "" {
		if err := json.Unmarshal([]byte(r.Data), &e.Data); err != nil {
			return logentry.Entry{}, fmt.Errorf("decode data: %w", err)
		}
	}
	return e, nil
}

func (a *Archive) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", archive.ErrStorageUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", archive.ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
