package repository

import (
	"math"
	"testing"
	"time"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/services/trainer"
)

func trainedModel(t *testing.T) *models.TrainedModel {
	t.Helper()
	cfg := trainer.DefaultConfig()
	cfg.Forest.Trees = 8
	tr, err := trainer.New(cfg, nil)
	if err != nil {
		t.Fatalf("trainer: %v", err)
	}
	s := models.TimeSeries{Location: "x"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 30; d++ {
		s.Observations = append(s.Observations, models.Observation{
			Time: start.AddDate(0, 0, d),
			Values: map[string]float64{
				"temperature": 20 + math.Sin(float64(d)),
				"humidity":    60 + float64(d%5),
			},
		})
	}
	m, _, err := tr.Train(s)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return m
}
