package repository

import (
	"context"
	"time"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	pkgkafka "WeatherCast/pkg/kafka"
)

// ForecastRecordType is the type header on published forecasts.
const ForecastRecordType = "forecast"

// KafkaForecastPublisher publishes each forecast as one message keyed by location.
type KafkaForecastPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

// forecastMessage is the wire shape consumers read.
type forecastMessage struct {
	Location  string    `json:"location"`
	Model     string    `json:"model"`
	Target    string    `json:"target"`
	IssuedAt  time.Time `json:"issued_at"`
	Requested int       `json:"requested"`
	Truncated bool      `json:"truncated"`
	Dates     []string  `json:"dates"`
	Values    []float64 `json:"values"`
}

func (p *KafkaForecastPublisher) PublishForecast(ctx context.Context, f *models.Forecast) error {
	msg := forecastMessage{
		Location:  f.Location,
		Model:     f.Model,
		Target:    f.Target,
		IssuedAt:  f.IssuedAt,
		Requested: f.Requested,
		Truncated: f.Truncated,
		Dates:     make([]string, len(f.Steps)),
		Values:    f.Values(),
	}
	for i, s := range f.Steps {
		msg.Dates[i] = s.Date.Format("2006-01-02")
	}
	return p.producer.Send(ctx, pkgkafka.Record{Topic: p.topic, Key: f.Location, Type: ForecastRecordType, Value: msg})
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopForecastPublisher drops forecasts; used when Kafka is not configured.
type NoopForecastPublisher struct{}

func (NoopForecastPublisher) PublishForecast(context.Context, *models.Forecast) error { return nil }
func (NoopForecastPublisher) Close() error                                            { return nil }

var (
	_ domrepo.ForecastPublisher = (*KafkaForecastPublisher)(nil)
	_ domrepo.ForecastPublisher = NoopForecastPublisher{}
)
