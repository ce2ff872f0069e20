package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Forecast.Target != "temperature" || c.Forecast.LagDepth != 5 || c.Forecast.Trees != 100 {
		t.Fatalf("unexpected forecast defaults: %+v", c.Forecast)
	}
	if got := strings.Join(c.Forecast.AuxFields, ","); got != "humidity,wind_speed,precipitation" {
		t.Fatalf("aux fields = %q", got)
	}
	if c.Server.ReadTimeout != 10*time.Second || c.Redis.Queue.Workers != 2 {
		t.Fatalf("unexpected nested defaults: %+v %+v", c.Server, c.Redis.Queue)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `
environment: production
forecast:
  target: humidity
  aux_fields: [temperature]
  lag_depth: 7
server:
  port: 9090
  read_timeout: 3s
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Environment != "production" || c.Forecast.Target != "humidity" || c.Forecast.LagDepth != 7 {
		t.Fatalf("file values not applied: %+v", c.Forecast)
	}
	if len(c.Forecast.AuxFields) != 1 || c.Forecast.AuxFields[0] != "temperature" {
		t.Fatalf("aux fields = %v", c.Forecast.AuxFields)
	}
	if c.Server.Port != 9090 || c.Server.ReadTimeout != 3*time.Second {
		t.Fatalf("server = %+v", c.Server)
	}
	if c.Server.WriteTimeout != 30*time.Second || c.Forecast.TestFraction != 0.2 {
		t.Fatalf("defaults lost: write=%v frac=%v", c.Server.WriteTimeout, c.Forecast.TestFraction)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad fraction":   "forecast:\n  test_fraction: 1.5\n",
		"bad source":     "source:\n  type: parquet\n",
		"s3 no bucket":   "store:\n  type: s3\n",
		"dup aux":        "forecast:\n  aux_fields: [humidity, humidity]\n",
		"clickhouse off": "source:\n  type: clickhouse\n",
		"zero lag":       "forecast:\n  lag_depth: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("MODEL_DIR", "/var/models")
	t.Setenv("FORECAST_TARGET", "wind_speed")
	t.Setenv("FORECAST_AUX_FIELDS", "humidity, pressure")
	t.Setenv("FORECAST_LAG_DEPTH", "7")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "not-a-number")

	c, err := LoadWithEnv("")
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Store.ModelDir != "/var/models" || c.Forecast.Target != "wind_speed" {
		t.Fatalf("env not applied: %+v %+v", c.Store, c.Forecast)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("kafka = %+v", c.Kafka)
	}
	if c.Forecast.LagDepth != 7 || len(c.Forecast.AuxFields) != 2 || c.Forecast.AuxFields[1] != "pressure" {
		t.Fatalf("forecast = %+v", c.Forecast)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" || c.Redis.DB != 0 {
		t.Fatalf("redis = %+v", c.Redis)
	}
}
