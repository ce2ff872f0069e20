package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestSendEncodesRecord(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "zstd")
	ctx := context.Background()

	err := p.Send(ctx, Record{Topic: "forecasts", Key: "oslo", Type: "forecast", Value: map[string]int{"days": 3}})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := p.PublishMessage(ctx, "logs", "raw line"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d", len(w.msgs))
	}

	m := w.msgs[0]
	var body map[string]int
	if err := json.Unmarshal(m.Value, &body); err != nil || body["days"] != 3 {
		t.Fatalf("body = %s (%v)", m.Value, err)
	}
	if string(m.Key) != "oslo" || len(m.Headers) != 1 || string(m.Headers[0].Value) != "forecast" {
		t.Fatalf("message = %+v", m)
	}
	if w.msgs[1].Key != nil || string(w.msgs[1].Value) != "raw line" {
		t.Fatalf("log message = %+v", w.msgs[1])
	}
}

func TestSendReportsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := NewProducerWithWriter(&memWriter{err: boom}, "none")
	if err := p.Send(context.Background(), Record{Topic: "t", Value: "x"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := p.Send(context.Background(), Record{Topic: "t", Value: func() {}}); err == nil {
		t.Fatalf("unencodable value must fail")
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]kafka.Compression{
		"none":   0,
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	}
	for in, want := range cases {
		if got := parseCompression(in); got != want {
			t.Fatalf("%s: got %v, want %v", in, got, want)
		}
	}
	if _, err := NewProducer(ProducerConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
