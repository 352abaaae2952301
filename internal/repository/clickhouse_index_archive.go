package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Preda/internal/domain/models"
	domrepo "Preda/internal/domain/repository"
	pkgch "Preda/pkg/clickhouse"
	applogger "Preda/pkg/logger"
)

// CHIndexArchive writes index samples and inflection events to ClickHouse
// and serves archive reads. Nothing in the engine is restored from it.
type CHIndexArchive struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHIndexArchive(ch *pkgch.Client, database string, l *applogger.Logger) *CHIndexArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHIndexArchive{ch: ch, db: ch.DB(), database: database, l: l}
}

func schema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bsi_samples (
            ts DateTime,
            domain LowCardinality(String),
            value Float64,
            velocity Float64,
            volatility Float64,
            confidence Float64,
            signal_count UInt32
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (domain, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bsi_inflections (
            id String,
            domain LowCardinality(String),
            status LowCardinality(String),
            inflection_type UInt8,
            ts DateTime,
            bsi_value Float64,
            velocity Float64,
            sharpness Float64,
            persistence_duration Int64,
            validated UInt8,
            emitted_at DateTime
        ) ENGINE = ReplacingMergeTree(emitted_at)
        ORDER BY (domain, id, status)`, db),
	}
}

func (s *CHIndexArchive) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, schema(s.database))
}

func (s *CHIndexArchive) StoreIndex(ctx context.Context, idx models.BeliefStateIndex) error {
	return s.StoreIndexBatch(ctx, []models.BeliefStateIndex{idx})
}

func (s *CHIndexArchive) StoreIndexBatch(ctx context.Context, batch []models.BeliefStateIndex) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(batch))
	for _, idx := range batch {
		if idx.Domain == "" {
			continue
		}
		rows = append(rows, indexRow(idx))
	}
	q := fmt.Sprintf("INSERT INTO %s.bsi_samples (ts, domain, value, velocity, volatility, confidence, signal_count) VALUES (?, ?, ?, ?, ?, ?, ?)", s.database)
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		s.l.Error("clickhouse store_index error", applogger.Int("rows", len(rows)), applogger.Error(err))
		return fmt.Errorf("store index batch: %w", err)
	}
	return nil
}

func (s *CHIndexArchive) StoreInflection(ctx context.Context, ev models.InflectionEvent) error {
	q := fmt.Sprintf("INSERT INTO %s.bsi_inflections (id, domain, status, inflection_type, ts, bsi_value, velocity, sharpness, persistence_duration, validated, emitted_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.database)
	if err := s.ch.InsertBatch(ctx, q, [][]any{inflectionRow(ev)}); err != nil {
		s.l.Error("clickhouse store_inflection error",
			applogger.String("domain", ev.Domain),
			applogger.String("id", ev.ID),
			applogger.Error(err))
		return fmt.Errorf("store inflection: %w", err)
	}
	return nil
}

// Query returns samples in [from, to] ascending. Bucketed timeframes return
// the last sample of each bucket stamped with the bucket start.
func (s *CHIndexArchive) Query(ctx context.Context, domain string, from, to time.Time, tf domrepo.Timeframe, limit int) ([]models.BeliefStateIndex, error) {
	start := time.Now()
	q := buildIndexQuery(s.database, tf)
	rows, err := s.db.QueryContext(ctx, q, domain, from, to, limit)
	if err != nil {
		s.logQueryError("query", domain, tf, err)
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	out := make([]models.BeliefStateIndex, 0, limit)
	for rows.Next() {
		var (
			idx models.BeliefStateIndex
			ts  time.Time
		)
		if err := rows.Scan(&ts, &idx.Domain, &idx.Value, &idx.Velocity, &idx.Volatility, &idx.Confidence, &idx.SignalCount); err != nil {
			s.logQueryError("scan", domain, tf, err)
			return nil, fmt.Errorf("scan index: %w", err)
		}
		idx.LastUpdated = ts.Unix()
		out = append(out, idx)
	}
	if err := rows.Err(); err != nil {
		s.logQueryError("rows", domain, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}

	reverse(out)
	s.l.Debug("clickhouse archive query ok",
		applogger.String("domain", domain),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHIndexArchive) logQueryError(stage, domain string, tf domrepo.Timeframe, err error) {
	s.l.Error("clickhouse archive "+stage+" error",
		applogger.String("domain", domain),
		applogger.String("tf", string(tf)),
		applogger.Error(err))
}

func (s *CHIndexArchive) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close is a no-op; the client is owned by the caller.
func (s *CHIndexArchive) Close() error { return nil }

// buildIndexQuery selects newest first so LIMIT keeps the latest rows; the
// caller reverses the result.
func buildIndexQuery(db string, tf domrepo.Timeframe) string {
	bucket := tf.Bucket()
	if bucket == 0 {
		return fmt.Sprintf(`
        SELECT ts, domain, value, velocity, volatility, confidence, signal_count
        FROM %s.bsi_samples
        WHERE domain = ? AND ts >= ? AND ts <= ?
        ORDER BY ts DESC
        LIMIT ?`, db)
	}
	return fmt.Sprintf(`
        SELECT toStartOfInterval(ts, INTERVAL %d SECOND) AS bucket, domain,
            argMax(value, ts), argMax(velocity, ts), argMax(volatility, ts),
            argMax(confidence, ts), argMax(signal_count, ts)
        FROM %s.bsi_samples
        WHERE domain = ? AND ts >= ? AND ts <= ?
        GROUP BY bucket, domain
        ORDER BY bucket DESC
        LIMIT ?`, int(bucket.Seconds()), db)
}

func indexRow(idx models.BeliefStateIndex) []any {
	return []any{
		time.Unix(idx.LastUpdated, 0).UTC(),
		idx.Domain,
		idx.Value,
		idx.Velocity,
		idx.Volatility,
		idx.Confidence,
		idx.SignalCount,
	}
}

func inflectionRow(ev models.InflectionEvent) []any {
	var validated uint8
	if ev.Inflection.Validated {
		validated = 1
	}
	return []any{
		ev.ID,
		ev.Domain,
		string(ev.Status),
		uint8(ev.Inflection.InflectionType),
		time.Unix(ev.Inflection.Timestamp, 0).UTC(),
		ev.Inflection.BsiValue,
		ev.Inflection.Velocity,
		ev.Inflection.Sharpness,
		ev.Inflection.PersistenceDuration,
		validated,
		time.Unix(ev.EmittedAt, 0).UTC(),
	}
}

func reverse(xs []models.BeliefStateIndex) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}

var _ domrepo.IndexArchive = (*CHIndexArchive)(nil)
