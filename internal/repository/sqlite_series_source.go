package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	applogger "WeatherCast/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// SQLiteSeriesSource reads a wide observations table from a local SQLite file:
// one row per (location, date) with one REAL column per field.
type SQLiteSeriesSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// OpenSQLiteSeriesSource opens (or creates) the database at path and ensures
// the table exists with the default field columns.
func OpenSQLiteSeriesSource(ctx context.Context, path, table string) (*SQLiteSeriesSource, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	s := &SQLiteSeriesSource{db: db, table: table}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SetLogger injects a structured logger.
func (s *SQLiteSeriesSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *SQLiteSeriesSource) initSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		location      TEXT NOT NULL,
		date          TEXT NOT NULL,
		temperature   REAL,
		humidity      REAL,
		wind_speed    REAL,
		precipitation REAL,
		PRIMARY KEY (location, date)
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

// Upsert writes observations for a location; fields not in the table are ignored.
func (s *SQLiteSeriesSource) Upsert(ctx context.Context, location string, obs []models.Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (location, date, temperature, humidity, wind_speed, precipitation)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, date) DO UPDATE SET
			temperature = excluded.temperature,
			humidity = excluded.humidity,
			wind_speed = excluded.wind_speed,
			precipitation = excluded.precipitation`, s.table)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, location, o.Time.UTC().Format("2006-01-02"),
			nullable(o, "temperature"), nullable(o, "humidity"),
			nullable(o, "wind_speed"), nullable(o, "precipitation")); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert observation: %w", err)
		}
	}
	return tx.Commit()
}

func nullable(o models.Observation, field string) sql.NullFloat64 {
	v, ok := o.Value(field)
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func (s *SQLiteSeriesSource) LoadSeries(ctx context.Context, location string) (models.TimeSeries, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT * FROM %s WHERE location = ? ORDER BY date ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, location)
	if err != nil {
		s.l.Error("sqlite load_series query error", applogger.String("table", s.table), applogger.String("location", location), applogger.Error(err))
		return models.TimeSeries{}, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	obs, dropped, err := scanObservations(rows, "date", "location")
	if err != nil {
		s.l.Error("sqlite load_series scan error", applogger.String("table", s.table), applogger.String("location", location), applogger.Error(err))
		return models.TimeSeries{}, err
	}
	series := models.TimeSeries{Location: location, Observations: obs}.Normalize()
	s.l.Info("sqlite load_series ok",
		applogger.String("table", s.table),
		applogger.String("location", location),
		applogger.Int("rows", series.Len()),
		applogger.Int("dropped_undated", dropped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return series, nil
}

func (s *SQLiteSeriesSource) Close() error {
	return s.db.Close()
}

var _ domrepo.SeriesSource = (*SQLiteSeriesSource)(nil)
