package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/livecart/internal/adapter/metrics"
)

type queryTracer struct {
	metrics *metrics.DBMetrics
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

func newQueryTracer(m *metrics.DBMetrics) *queryTracer {
	return &queryTracer{metrics: m}
}

type traceKey struct{}

type traceStart struct {
	at        time.Time
	statement string
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{at: time.Now(), statement: statementKind(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}

	t.metrics.QueryDuration.WithLabelValues(start.statement).Observe(time.Since(start.at).Seconds())
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		t.metrics.QueryErrors.WithLabelValues(start.statement).Inc()
	}
}

// statementKind reduces SQL to its leading keyword to keep label cardinality low.
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	switch kind := strings.ToLower(fields[0]); kind {
	case "select", "insert", "update", "delete", "with", "begin", "commit", "rollback":
		return kind
	default:
		return "other"
	}
}
