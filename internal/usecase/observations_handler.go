package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	pkgkafka "WeatherCast/pkg/kafka"
	xutil "WeatherCast/pkg/util"
)

// ObservationSink stores ingested observations.
type ObservationSink interface {
	Upsert(ctx context.Context, location string, obs []models.Observation) error
}

// ObservationsHandler consumes observation messages from Kafka and writes
// them to the local observation store.
type ObservationsHandler struct {
	topic    string
	sink     ObservationSink
	metrics  domrepo.Metrics
	onIngest func(ctx context.Context, location string)
}

func NewObservationsHandler(topic string, sink ObservationSink, metrics domrepo.Metrics) *ObservationsHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ObservationsHandler{topic: topic, sink: sink, metrics: metrics}
}

// OnIngest registers a callback run after each stored message.
func (h *ObservationsHandler) OnIngest(fn func(ctx context.Context, location string)) { h.onIngest = fn }

func (h *ObservationsHandler) Topic() string { return h.topic }

// incoming message schema: {location, date, values: {field: number|null}}
func (h *ObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Location string              `json:"location"`
		Date     string              `json:"date"`
		Values   map[string]*float64 `json:"values"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return err
	}
	if m.Location == "" {
		h.metrics.RecordError("ingest_invalid")
		return fmt.Errorf("observation without location")
	}
	t, ok := xutil.ParseTime(m.Date)
	if !ok {
		h.metrics.RecordError("ingest_invalid")
		return fmt.Errorf("observation for %s: bad date %q", m.Location, m.Date)
	}

	obs := models.Observation{Time: xutil.CalendarDay(t), Values: make(map[string]float64, len(m.Values))}
	for k, v := range m.Values {
		if v == nil {
			obs.Values[k] = math.NaN()
			continue
		}
		obs.Values[k] = *v
	}

	if err := h.sink.Upsert(ctx, m.Location, []models.Observation{obs}); err != nil {
		h.metrics.RecordError("ingest_store")
		return err
	}
	if h.onIngest != nil {
		h.onIngest(ctx, m.Location)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*ObservationsHandler)(nil)
