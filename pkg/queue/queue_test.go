package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

type trainPayload struct {
	JobID    string `json:"job_id"`
	Location string `json:"location"`
	LagDepth int    `json:"lag_depth"`
}

func TestDecode(t *testing.T) {
	want := trainPayload{JobID: "j1", Location: "hanoi", LagDepth: 5}
	raw, _ := json.Marshal(want)

	got, err := Decode[trainPayload](raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != want {
		t.Fatalf("got %+v, want %+v", *got, want)
	}
	if _, err := Decode[trainPayload](nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if _, err := Decode[trainPayload](json.RawMessage(`{"lag_depth":"five"}`)); err == nil {
		t.Fatalf("expected error for mistyped payload")
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("no usable rows")
	err := fmt.Errorf("train: %w", Permanent(base))
	if !IsPermanent(err) || !errors.Is(err, base) {
		t.Fatalf("permanent marker lost through wrapping: %v", err)
	}
	if IsPermanent(base) {
		t.Fatalf("plain error reported permanent")
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) must stay nil")
	}
}

func TestDeliveryAndOutcome(t *testing.T) {
	q := newRedisQueue(nil, QueueConfig{RetryLimit: 2, RetryDelay: time.Second}, nil, true)
	defer q.cancel()

	msg := Message{ID: "m", Type: "train_model", Payload: json.RawMessage(`{}`)}
	d := q.delivery(msg)
	if d.Attempt != 1 || d.Final {
		t.Fatalf("first delivery = %+v", d)
	}
	msg.Attempts = 2
	if d := q.delivery(msg); d.Attempt != 3 || !d.Final {
		t.Fatalf("last delivery = %+v", d)
	}

	first := Delivery{Attempt: 1}
	last := Delivery{Attempt: 3, Final: true}
	boom := errors.New("redis timeout")
	cases := []struct {
		name string
		d    Delivery
		err  error
		want outcome
	}{
		{"success", first, nil, outcomeDone},
		{"transient", first, boom, outcomeRetry},
		{"permanent", first, Permanent(boom), outcomeDeadLetter},
		{"exhausted", last, boom, outcomeDeadLetter},
		{"cancelled while running", first, context.Canceled, outcomeRetry},
	}
	for _, tc := range cases {
		if got := q.outcomeOf(tc.d, tc.err); got != tc.want {
			t.Fatalf("%s: outcome = %d, want %d", tc.name, got, tc.want)
		}
	}

	q.cancel()
	if got := q.outcomeOf(last, context.Canceled); got != outcomeRequeue {
		t.Fatalf("shutdown interruption = %d, want requeue", got)
	}
}

func TestBackoffGrowsLinearly(t *testing.T) {
	q := newRedisQueue(nil, QueueConfig{RetryDelay: 2 * time.Second}, nil, true)
	defer q.cancel()
	if q.backoff(1) != 2*time.Second || q.backoff(3) != 6*time.Second {
		t.Fatalf("backoff = %v, %v", q.backoff(1), q.backoff(3))
	}
}

type nopJob struct{ typ string }

func (j nopJob) Name() string { return "nop" }
func (j nopJob) Type() string { return j.typ }

func (j nopJob) Handle(context.Context, Delivery) error { return nil }

func TestRegisterJob(t *testing.T) {
	c := NewRedisConsumer(nil, QueueConfig{}, nil, []Job{nopJob{"a"}, nopJob{"a"}, nopJob{"b"}})
	defer c.cancel()
	if len(c.jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(c.jobs))
	}

	p := newRedisQueue(nil, QueueConfig{}, nil, false)
	defer p.cancel()
	p.RegisterJob(nopJob{"a"})
	if len(p.jobs) != 0 {
		t.Fatalf("publisher must not register jobs")
	}
	if err := p.PublishMessage(context.Background(), "a", struct{}{}); err == nil {
		t.Fatalf("publishing on a stopped queue must fail")
	}
}
