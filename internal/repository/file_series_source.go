package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	applogger "WeatherCast/pkg/logger"
	"WeatherCast/pkg/util"
)

// DefaultDateColumn is the column holding the observation date.
const DefaultDateColumn = "date"

// FileSeriesSource reads one observation file per location from a data
// directory. The location is a file name; a missing extension is filled in
// from the format.
type FileSeriesSource struct {
	dir        string
	format     domrepo.SourceType
	dateColumn string
	l          *applogger.Logger
}

func NewCSVSeriesSource(dir string) *FileSeriesSource {
	return &FileSeriesSource{dir: dir, format: domrepo.SourceCSV, dateColumn: DefaultDateColumn}
}

func NewJSONSeriesSource(dir string) *FileSeriesSource {
	return &FileSeriesSource{dir: dir, format: domrepo.SourceJSON, dateColumn: DefaultDateColumn}
}

// SetLogger injects a structured logger.
func (s *FileSeriesSource) SetLogger(l *applogger.Logger) { s.l = l }

// SetDateColumn overrides the date column name.
func (s *FileSeriesSource) SetDateColumn(name string) {
	if name != "" {
		s.dateColumn = name
	}
}

func (s *FileSeriesSource) path(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("location is empty")
	}
	base := filepath.Base(location)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid location %q", location)
	}
	if filepath.Ext(base) == "" {
		base += "." + string(s.format)
	}
	return filepath.Join(s.dir, base), nil
}

func (s *FileSeriesSource) LoadSeries(ctx context.Context, location string) (models.TimeSeries, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return models.TimeSeries{}, err
	}
	path, err := s.path(location)
	if err != nil {
		return models.TimeSeries{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.TimeSeries{}, models.NewDataError(fmt.Sprintf("no data file %s", path), models.ErrEmptySeries)
		}
		return models.TimeSeries{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var obs []models.Observation
	var dropped int
	switch s.format {
	case domrepo.SourceJSON:
		obs, dropped, err = decodeJSONObservations(f, s.dateColumn)
	default:
		obs, dropped, err = decodeCSVObservations(f, s.dateColumn)
	}
	if err != nil {
		s.l.Error("series decode error", applogger.String("path", path), applogger.Error(err))
		return models.TimeSeries{}, err
	}

	series := models.TimeSeries{Location: location, Observations: obs}.Normalize()
	s.l.Info("series loaded",
		applogger.String("path", path),
		applogger.Int("rows", series.Len()),
		applogger.Int("dropped_undated", dropped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return series, nil
}

// decodeCSVObservations reads a header row then one observation per record.
// Rows whose date does not parse are dropped and counted.
func decodeCSVObservations(r io.Reader, dateColumn string) ([]models.Observation, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, models.NewDataError("csv has no header", models.ErrEmptySeries)
		}
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	dateIdx := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == dateColumn {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, 0, models.NewDataError(fmt.Sprintf("csv has no %q column", dateColumn), models.ErrEmptySeries)
	}

	var out []models.Observation
	dropped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv: %w", err)
		}
		if dateIdx >= len(rec) {
			dropped++
			continue
		}
		ts, ok := util.ParseTime(rec[dateIdx])
		if !ok {
			dropped++
			continue
		}
		vals := make(map[string]float64, len(header)-1)
		for i, name := range header {
			if i == dateIdx || name == "" {
				continue
			}
			if i < len(rec) {
				vals[name] = util.ParseFloatCell(rec[i])
			} else {
				vals[name] = math.NaN()
			}
		}
		out = append(out, models.Observation{Time: util.CalendarDay(ts), Values: vals})
	}
	return out, dropped, nil
}

// decodeJSONObservations reads an array of flat objects. Numbers and numeric
// strings become values; null and anything else is missing.
func decodeJSONObservations(r io.Reader, dateColumn string) ([]models.Observation, int, error) {
	var records []map[string]interface{}
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, 0, fmt.Errorf("decode json observations: %w", err)
	}
	out := make([]models.Observation, 0, len(records))
	dropped := 0
	for _, rec := range records {
		raw, _ := rec[dateColumn].(string)
		ts, ok := util.ParseTime(raw)
		if !ok {
			dropped++
			continue
		}
		vals := make(map[string]float64, len(rec)-1)
		for k, v := range rec {
			if k == dateColumn {
				continue
			}
			switch x := v.(type) {
			case float64:
				vals[k] = x
			case string:
				vals[k] = util.ParseFloatCell(x)
			default:
				vals[k] = math.NaN()
			}
		}
		out = append(out, models.Observation{Time: util.CalendarDay(ts), Values: vals})
	}
	return out, dropped, nil
}

var _ domrepo.SeriesSource = (*FileSeriesSource)(nil)
