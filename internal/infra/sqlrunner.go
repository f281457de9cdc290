package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor defines the contract required by repositories for executing SQL queries.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// ErrSQLMarker is returned for statements without a leading "--sql <uuid>" line.
var ErrSQLMarker = errors.New("sql marker missing or invalid")

// SlowQueryThreshold is the duration above which statements are logged at warn level.
const SlowQueryThreshold = 500 * time.Millisecond

var markerRegexp = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

// SQLRunner strips the audit marker from every statement and logs it as
// sql_id. Routine statements log at debug; the worker claims jobs every few
// seconds and an empty queue is not an error.
type SQLRunner struct {
	db     SQLExecutor
	logger zerolog.Logger
	now    func() time.Time
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return newSQLRunner(pool, logger)
}

func newSQLRunner(db SQLExecutor, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{db: db, logger: logger, now: time.Now}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := r.now()
	tag, err := r.db.Exec(ctx, trimmed, args...)
	r.finish(marker, "exec", start, err).Int64("rows", tag.RowsAffected()).Msg("sql: exec")
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return loggingRow{
		row:    r.db.QueryRow(ctx, trimmed, args...),
		runner: r,
		marker: marker,
		start:  r.now(),
	}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := r.now()
	rows, err := r.db.Query(ctx, trimmed, args...)
	if err != nil {
		r.finish(marker, "query", start, err).Msg("sql: query")
		return nil, err
	}
	return &loggingRows{Rows: rows, runner: r, marker: marker, start: start}, nil
}

// finish picks the log level for a completed statement.
func (r *SQLRunner) finish(marker, op string, start time.Time, err error) *zerolog.Event {
	elapsed := r.now().Sub(start)
	var ev *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		ev = r.logger.Error().Err(err)
	case elapsed > SlowQueryThreshold:
		ev = r.logger.Warn().Bool("slow", true)
	default:
		ev = r.logger.Debug()
		if err != nil {
			ev = ev.Bool("no_rows", true)
		}
	}
	return ev.Str("sql_id", marker).Str("op", op).Dur("duration", elapsed)
}

type loggingRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	l.runner.finish(l.marker, "query_row", l.start, err).Msg("sql: query_row")
	return err
}

type loggingRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
	count  int
	closed bool
}

func (l *loggingRows) Next() bool {
	ok := l.Rows.Next()
	if ok {
		l.count++
	}
	return ok
}

func (l *loggingRows) Close() {
	l.Rows.Close()
	if l.closed {
		return
	}
	l.closed = true
	l.runner.finish(l.marker, "query", l.start, l.Rows.Err()).Int("rows", l.count).Msg("sql: query")
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	first, rest, _ := strings.Cut(trimmed, "\n")
	m := markerRegexp.FindStringSubmatch(strings.TrimSpace(first))
	if m == nil {
		return "", "", ErrSQLMarker
	}
	return m[1], strings.TrimSpace(rest), nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
