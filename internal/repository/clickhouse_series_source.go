package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	pkgch "WeatherCast/pkg/clickhouse"
	applogger "WeatherCast/pkg/logger"
)

// CHSeriesSource implements SeriesSource backed by a ClickHouse table with
// one row per (location, date) and one Nullable(Float64) column per field.
type CHSeriesSource struct {
	db       *sql.DB
	table    string
	lookback int
	l        *applogger.Logger
}

// NewCHSeriesSource reads from table; lookback > 0 limits reads to the most
// recent lookback days per location.
func NewCHSeriesSource(ch *pkgch.Client, table string, lookback int) (*CHSeriesSource, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CHSeriesSource{db: ch.DB(), table: table, lookback: lookback}, nil
}

// SetLogger injects a structured logger.
func (s *CHSeriesSource) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns the DDL for the observations table.
func (s *CHSeriesSource) SchemaStatements() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            location      LowCardinality(String),
            date          Date,
            temperature   Nullable(Float64),
            humidity      Nullable(Float64),
            wind_speed    Nullable(Float64),
            precipitation Nullable(Float64)
        ) ENGINE = ReplacingMergeTree
        ORDER BY (location, date)
    `, s.table)}
}

func (s *CHSeriesSource) LoadSeries(ctx context.Context, location string) (models.TimeSeries, error) {
	start := time.Now()
	var (
		rows *sql.Rows
		err  error
	)
	if s.lookback > 0 {
		const qtpl = `
        SELECT * FROM (
            SELECT * FROM %s FINAL
            WHERE location = ?
            ORDER BY date DESC
            LIMIT ?
        ) ORDER BY date ASC
    `
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), location, s.lookback)
	} else {
		const qtpl = `
        SELECT * FROM %s FINAL
        WHERE location = ?
        ORDER BY date ASC
    `
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), location)
	}
	if err != nil {
		s.l.Error("clickhouse load_series query error",
			applogger.String("table", s.table),
			applogger.String("location", location),
			applogger.Error(err),
		)
		return models.TimeSeries{}, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	obs, dropped, err := scanObservations(rows, "date", "location")
	if err != nil {
		s.l.Error("clickhouse load_series scan error",
			applogger.String("table", s.table),
			applogger.String("location", location),
			applogger.Error(err),
		)
		return models.TimeSeries{}, err
	}
	series := models.TimeSeries{Location: location, Observations: obs}.Normalize()
	s.l.Info("clickhouse load_series ok",
		applogger.String("table", s.table),
		applogger.String("location", location),
		applogger.Int("rows", series.Len()),
		applogger.Int("dropped_undated", dropped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return series, nil
}

var _ domrepo.SeriesSource = (*CHSeriesSource)(nil)
