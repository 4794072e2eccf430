package database

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kader009/trustedge-backend/pkg/database"

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "db_query_duration_seconds",
	Help:    "Duration of traced database operations.",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"operation", "outcome"})

var slowQueryCfg struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowQueryLogging configures slow query detection. Queries exceeding the
// threshold are logged as warnings with the operation name, the SQL statement
// and the duration. A zero threshold disables slow query logging.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQueryCfg.mu.Lock()
	defer slowQueryCfg.mu.Unlock()
	slowQueryCfg.threshold = threshold
	slowQueryCfg.logger = logger
}

func getSlowQueryConfig() (time.Duration, *slog.Logger) {
	slowQueryCfg.mu.RLock()
	defer slowQueryCfg.mu.RUnlock()
	return slowQueryCfg.threshold, slowQueryCfg.logger
}

// TraceQuery starts a span for a database operation and records its latency.
// The returned function must be called when the operation completes:
//
//	ctx, end := database.TraceQuery(ctx, "LockProduct", lockProductSQL)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		queryDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())

		if threshold, logger := getSlowQueryConfig(); threshold > 0 && logger != nil && elapsed >= threshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}

// Traced wraps db so every statement runs under a TraceQuery span named
// after component and the statement verb, for example "users.select".
func Traced(db DBTX, component string) DBTX {
	return &tracedDB{db: db, component: component}
}

type tracedDB struct {
	db        DBTX
	component string
}

func (t *tracedDB) operation(sql string) string {
	verb := "query"
	if fields := strings.Fields(sql); len(fields) > 0 {
		verb = strings.ToLower(fields[0])
	}
	return t.component + "." + verb
}

func (t *tracedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, end := TraceQuery(ctx, t.operation(sql), sql)
	tag, err := t.db.Exec(ctx, sql, args...)
	end(err)
	return tag, err
}

func (t *tracedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, end := TraceQuery(ctx, t.operation(sql), sql)
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		end(err)
		return nil, err
	}
	return &tracedRows{Rows: rows, end: end}, nil
}

func (t *tracedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, end := TraceQuery(ctx, t.operation(sql), sql)
	return &tracedRow{row: t.db.QueryRow(ctx, sql, args...), end: end}
}

// tracedRows ends its span on Close with the iteration error.
type tracedRows struct {
	pgx.Rows
	end  func(error)
	once sync.Once
}

func (r *tracedRows) Close() {
	r.Rows.Close()
	r.once.Do(func() { r.end(r.Rows.Err()) })
}

type tracedRow struct {
	row pgx.Row
	end func(error)
}

// Scan ends the span. pgx.ErrNoRows is a lookup result, not a failure.
func (r *tracedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		r.end(nil)
	} else {
		r.end(err)
	}
	return err
}
