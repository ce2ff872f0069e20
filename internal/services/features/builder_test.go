package features

import (
	"math"
	"reflect"
	"testing"
	"time"

	"WeatherCast/internal/domain/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(n int, fields map[string]func(d int) float64) models.TimeSeries {
	s := models.TimeSeries{Location: "test"}
	for d := 0; d < n; d++ {
		vals := make(map[string]float64, len(fields))
		for name, fn := range fields {
			vals[name] = fn(d)
		}
		s.Observations = append(s.Observations, models.Observation{Time: day0.AddDate(0, 0, d), Values: vals})
	}
	return s
}

func mustBuilder(t *testing.T, cfg Config) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b
}

func TestLayoutOrder(t *testing.T) {
	got := Layout("temperature", []string{"humidity", "wind_speed"}, 2)
	want := []string{
		"day_of_year", "month", "day", "year",
		"temperature_lag_1", "temperature_lag_2",
		"humidity_lag_1", "humidity_lag_2",
		"wind_speed_lag_1", "wind_speed_lag_2",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("layout mismatch\n got %v\nwant %v", got, want)
	}
}

func TestBuildFeatureVector(t *testing.T) {
	s := dailySeries(6, map[string]func(int) float64{
		"temperature": func(d int) float64 { return float64(10 + d) },
		"humidity":    func(d int) float64 { return float64(50 + d) },
	})
	b := mustBuilder(t, Config{Target: "temperature", AuxFields: DefaultAuxFields(), LagDepth: 3})
	aux := b.ResolveAux(s)
	if !reflect.DeepEqual(aux, []string{"humidity"}) {
		t.Fatalf("unexpected aux %v", aux)
	}
	rows := b.Build(s, aux)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// row for day 3 (2024-01-04): lags are days 2,1,0
	want := []float64{4, 1, 4, 2024, 12, 11, 10, 52, 51, 50}
	if !reflect.DeepEqual(rows[0].Features, want) {
		t.Fatalf("features mismatch\n got %v\nwant %v", rows[0].Features, want)
	}
	if rows[0].Target != 13 {
		t.Fatalf("unexpected target %v", rows[0].Target)
	}
	if len(rows[0].Features) != len(b.Layout(aux)) {
		t.Fatalf("vector width %d does not match layout %d", len(rows[0].Features), len(b.Layout(aux)))
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	s := dailySeries(20, map[string]func(int) float64{
		"temperature":   func(d int) float64 { return 20 + math.Sin(float64(d)) },
		"wind_speed":    func(d int) float64 { return float64(d % 7) },
		"precipitation": func(d int) float64 { return float64(d%3) * 0.5 },
	})
	b := mustBuilder(t, DefaultConfig())
	aux := b.ResolveAux(s)
	if !reflect.DeepEqual(aux, []string{"wind_speed", "precipitation"}) {
		t.Fatalf("aux must follow configured order, got %v", aux)
	}
	first := b.Build(s, aux)
	second := b.Build(s, aux)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild produced different rows")
	}
}

func TestBuildShortSeriesIsEmpty(t *testing.T) {
	s := dailySeries(5, map[string]func(int) float64{
		"temperature": func(d int) float64 { return 1 },
	})
	b := mustBuilder(t, Config{Target: "temperature", LagDepth: 5})
	if rows := b.Build(s, nil); len(rows) != 0 {
		t.Fatalf("expected no rows for L points, got %d", len(rows))
	}
	if rows := b.Build(models.TimeSeries{}, nil); len(rows) != 0 {
		t.Fatalf("expected no rows for empty series")
	}
}

func TestBuildDropsRowsWithMissingLags(t *testing.T) {
	s := dailySeries(8, map[string]func(int) float64{
		"temperature": func(d int) float64 { return float64(d) },
	})
	// hole at day 3 invalidates rows whose window touches it (days 3, 4, 5)
	delete(s.Observations[3].Values, "temperature")
	b := mustBuilder(t, Config{Target: "temperature", LagDepth: 2})
	rows := b.Build(s, nil)
	var days []int
	for _, r := range rows {
		days = append(days, int(r.Target))
	}
	if !reflect.DeepEqual(days, []int{2, 6, 7}) {
		t.Fatalf("unexpected surviving rows %v", days)
	}
}

func TestBuildDropsRowsWithMissingAux(t *testing.T) {
	s := dailySeries(6, map[string]func(int) float64{
		"temperature": func(d int) float64 { return float64(d) },
		"humidity":    func(d int) float64 { return 40 },
	})
	s.Observations[4].Values["humidity"] = math.NaN()
	b := mustBuilder(t, Config{Target: "temperature", LagDepth: 1})
	rows := b.Build(s, []string{"humidity"})
	for _, r := range rows {
		if r.Target == 5 {
			t.Fatalf("row with NaN auxiliary lag should be dropped")
		}
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
}

func TestResolveAuxSkipsTarget(t *testing.T) {
	s := dailySeries(3, map[string]func(int) float64{
		"humidity":    func(int) float64 { return 1 },
		"temperature": func(int) float64 { return 1 },
	})
	b := mustBuilder(t, Config{Target: "humidity", AuxFields: []string{"temperature", "humidity"}, LagDepth: 1})
	if aux := b.ResolveAux(s); !reflect.DeepEqual(aux, []string{"temperature"}) {
		t.Fatalf("unexpected aux %v", aux)
	}
}

func TestNewBuilderRejectsDuplicates(t *testing.T) {
	if _, err := NewBuilder(Config{Target: "t", AuxFields: []string{"a", "a"}, LagDepth: 1}); err == nil {
		t.Fatalf("expected duplicate field error")
	}
	if _, err := NewBuilder(Config{Target: "t", LagDepth: -1}); err == nil {
		t.Fatalf("expected lag depth error")
	}
}

func TestCalendarFeatures(t *testing.T) {
	got := CalendarFeatures(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	want := []float64{366, 12, 31, 2024}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if n := NextDay(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)); n.Day() != 29 {
		t.Fatalf("unexpected next day %v", n)
	}
}
