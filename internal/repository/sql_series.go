package repository

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"WeatherCast/internal/domain/models"
	"WeatherCast/pkg/util"
)

// scanObservations turns a wide result set (one date column, one optional
// location column, numeric field columns) into observations. Column types
// differ per driver, so values are scanned untyped and coerced.
func scanObservations(rows *sql.Rows, dateColumn, locationColumn string) ([]models.Observation, int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, fmt.Errorf("columns: %w", err)
	}
	dateIdx := -1
	for i, c := range cols {
		if c == dateColumn {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, 0, fmt.Errorf("result has no %q column", dateColumn)
	}

	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	var out []models.Observation
	dropped := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, fmt.Errorf("scan observation: %w", err)
		}
		ts, ok := coerceTime(raw[dateIdx])
		if !ok {
			dropped++
			continue
		}
		vals := make(map[string]float64, len(cols))
		for i, c := range cols {
			if i == dateIdx || c == locationColumn {
				continue
			}
			vals[c] = coerceFloat(raw[i])
		}
		out = append(out, models.Observation{Time: util.CalendarDay(ts), Values: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	return out, dropped, nil
}

func coerceTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case string:
		return util.ParseTime(x)
	case []byte:
		return util.ParseTime(string(x))
	case int64:
		return time.Unix(x, 0).UTC(), x > 0
	default:
		return time.Time{}, false
	}
}

func coerceFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case *float64:
		if x == nil {
			return math.NaN()
		}
		return *x
	case float32:
		return float64(x)
	case *float32:
		if x == nil {
			return math.NaN()
		}
		return float64(*x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case int:
		return float64(x)
	case uint64:
		return float64(x)
	case uint32:
		return float64(x)
	case string:
		return util.ParseFloatCell(x)
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
