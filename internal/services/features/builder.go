package features

import (
	"fmt"
	"time"

	"WeatherCast/internal/domain/models"
)

// Field names used when no explicit configuration is given.
const (
	FieldTemperature   = "temperature"
	FieldHumidity      = "humidity"
	FieldWindSpeed     = "wind_speed"
	FieldPrecipitation = "precipitation"

	DefaultLagDepth = 5
)

// DefaultAuxFields is the enumeration order of auxiliary fields. The order is
// part of the feature layout and must not change for persisted models.
func DefaultAuxFields() []string {
	return []string{FieldHumidity, FieldWindSpeed, FieldPrecipitation}
}

// Config selects what the builder windows over.
type Config struct {
	Target    string
	AuxFields []string // candidate auxiliary fields, in layout order
	LagDepth  int
}

// DefaultConfig returns temperature with the default auxiliary fields and lag depth.
func DefaultConfig() Config {
	return Config{Target: FieldTemperature, AuxFields: DefaultAuxFields(), LagDepth: DefaultLagDepth}
}

// Builder turns an ordered series into supervised rows of calendar and lag features.
type Builder struct {
	cfg Config
}

// NewBuilder validates cfg and returns a builder. Zero values fall back to defaults.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.Target == "" {
		cfg.Target = FieldTemperature
	}
	if cfg.LagDepth == 0 {
		cfg.LagDepth = DefaultLagDepth
	}
	if cfg.LagDepth < 0 {
		return nil, fmt.Errorf("lag depth must be positive, got %d", cfg.LagDepth)
	}
	if cfg.AuxFields == nil {
		cfg.AuxFields = DefaultAuxFields()
	}
	seen := make(map[string]struct{}, len(cfg.AuxFields))
	for _, f := range cfg.AuxFields {
		if f == "" {
			return nil, fmt.Errorf("empty auxiliary field name")
		}
		if _, dup := seen[f]; dup {
			return nil, fmt.Errorf("duplicate auxiliary field %q", f)
		}
		seen[f] = struct{}{}
	}
	return &Builder{cfg: cfg}, nil
}

func (b *Builder) Target() string { return b.cfg.Target }
func (b *Builder) LagDepth() int  { return b.cfg.LagDepth }

// ResolveAux returns the configured auxiliary fields that the series actually
// carries, excluding the target, in configured order.
func (b *Builder) ResolveAux(series models.TimeSeries) []string {
	out := make([]string, 0, len(b.cfg.AuxFields))
	for _, f := range b.cfg.AuxFields {
		if f == b.cfg.Target {
			continue
		}
		if series.HasField(f) {
			out = append(out, f)
		}
	}
	return out
}

// Layout returns the feature names in vector order for the given auxiliary fields.
func (b *Builder) Layout(aux []string) []string {
	return Layout(b.cfg.Target, aux, b.cfg.LagDepth)
}

// Build windows the series. Row i is kept only if the target at i and every
// referenced lag position i-1..i-L hold present values for the target and
// each auxiliary field. A series shorter than L+1 yields no rows.
func (b *Builder) Build(series models.TimeSeries, aux []string) []models.FeatureRow {
	L := b.cfg.LagDepth
	obs := series.Observations
	if len(obs) <= L {
		return nil
	}
	rows := make([]models.FeatureRow, 0, len(obs)-L)
	targetLags := make([]float64, L)
	auxLags := make([][]float64, len(aux))
	for j := range auxLags {
		auxLags[j] = make([]float64, L)
	}

	for i := L; i < len(obs); i++ {
		y, ok := obs[i].Value(b.cfg.Target)
		if !ok {
			continue
		}
		if !fillLags(obs, i, b.cfg.Target, targetLags) {
			continue
		}
		complete := true
		for j, f := range aux {
			if !fillLags(obs, i, f, auxLags[j]) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		rows = append(rows, models.FeatureRow{
			Time:     obs[i].Time,
			Features: Assemble(obs[i].Time, targetLags, auxLags),
			Target:   y,
		})
	}
	return rows
}

// fillLags writes field values at positions i-1..i-len(dst) into dst and
// reports whether all of them were present.
func fillLags(obs []models.Observation, i int, field string, dst []float64) bool {
	for k := 1; k <= len(dst); k++ {
		if i-k < 0 {
			return false
		}
		v, ok := obs[i-k].Value(field)
		if !ok {
			return false
		}
		dst[k-1] = v
	}
	return true
}

// Assemble lays out one feature vector: calendar features of t, then
// targetLags (lag 1 first), then each auxiliary block in order. Training and
// forecasting both go through here so the layout cannot drift.
func Assemble(t time.Time, targetLags []float64, auxLags [][]float64) []float64 {
	n := models.CalendarFeatureCount + len(targetLags)
	for _, a := range auxLags {
		n += len(a)
	}
	out := make([]float64, 0, n)
	out = append(out, CalendarFeatures(t)...)
	out = append(out, targetLags...)
	for _, a := range auxLags {
		out = append(out, a...)
	}
	return out
}

// Layout returns feature names in vector order.
func Layout(target string, aux []string, lagDepth int) []string {
	names := make([]string, 0, models.CalendarFeatureCount+lagDepth*(1+len(aux)))
	names = append(names, CalendarNames()...)
	names = append(names, lagNames(target, lagDepth)...)
	for _, f := range aux {
		names = append(names, lagNames(f, lagDepth)...)
	}
	return names
}

func lagNames(field string, lagDepth int) []string {
	out := make([]string, lagDepth)
	for k := 1; k <= lagDepth; k++ {
		out[k-1] = fmt.Sprintf("%s_lag_%d", field, k)
	}
	return out
}
