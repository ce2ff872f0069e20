package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/service/ratelimit"
	"WeatherCast/internal/services/forecaster"
	"WeatherCast/internal/usecase"
)

type fakeForecast struct {
	got usecase.ForecastParams
	err error
}

func (f *fakeForecast) trace(p usecase.ForecastParams) *models.Forecast {
	fc := &models.Forecast{Location: p.Location, Model: p.ModelName, Target: "temperature", Requested: p.Days}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= p.Days; i++ {
		fc.Steps = append(fc.Steps, models.ForecastStep{Day: i, Date: start.AddDate(0, 0, i), Value: float64(10 + i)})
	}
	return fc
}

func (f *fakeForecast) Predict(_ context.Context, p usecase.ForecastParams) (*models.Forecast, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return f.trace(p), nil
}

func (f *fakeForecast) Stream(_ context.Context, p usecase.ForecastParams, onStep forecaster.StepFunc) (*models.Forecast, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	fc := f.trace(p)
	for _, s := range fc.Steps {
		if err := onStep(s); err != nil {
			return fc, forecaster.ErrStopped
		}
	}
	return fc, nil
}

type fakeTraining struct {
	async bool
	got   usecase.TrainParams
	err   error
	jobs  map[string]*usecase.JobStatus
}

func (f *fakeTraining) Submit(_ context.Context, p usecase.TrainParams) (*usecase.JobStatus, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	st := &usecase.JobStatus{ID: "job-1", State: usecase.JobSucceeded, Params: p}
	if f.async {
		st.State = usecase.JobQueued
	}
	return st, nil
}

func (f *fakeTraining) Status(_ context.Context, id string) (*usecase.JobStatus, error) {
	if st, ok := f.jobs[id]; ok {
		return st, nil
	}
	return nil, usecase.ErrJobNotFound
}

func (f *fakeTraining) Async() bool { return f.async }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newEcho(fc *fakeForecast, tr *fakeTraining, rl *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	NewForecastEchoHandler(nil, fc, tr, rl).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
	}
	if env.Status != rec.Code {
		t.Fatalf("envelope status %d differs from HTTP status %d", env.Status, rec.Code)
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	e := newEcho(&fakeForecast{}, &fakeTraining{}, nil)
	rec, _ := do(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestForecastPassesParams(t *testing.T) {
	fc := &fakeForecast{}
	e := newEcho(fc, &fakeTraining{}, nil)

	rec, env := do(t, e, http.MethodGet, "/api/forecast?location=paris&days=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	want := usecase.ForecastParams{Location: "paris", Days: 3}
	if fc.got != want {
		t.Fatalf("params = %+v, want %+v", fc.got, want)
	}
	var got models.Forecast
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if len(got.Steps) != 3 || got.Steps[2].Value != 13 {
		t.Fatalf("steps = %+v", got.Steps)
	}
}

func TestForecastValidation(t *testing.T) {
	e := newEcho(&fakeForecast{}, &fakeTraining{}, nil)
	for _, target := range []string{
		"/api/forecast",
		"/api/forecast?location=paris&days=-1",
		"/api/forecast?location=paris&days=400",
		"/api/forecast?location=paris&source=parquet",
	} {
		rec, _ := do(t, e, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestForecastErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.NewModelLoadError("m", "path", models.ErrModelNotFound), http.StatusNotFound},
		{models.NewModelLoadError("m", "path", models.ErrChecksumMismatch), http.StatusInternalServerError},
		{models.NewDataError("too few rows", models.ErrInsufficientRows), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", usecase.ErrSourceUnavailable), http.StatusBadRequest},
		{fmt.Errorf("forecast: %w", models.ErrHorizon), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := newEcho(&fakeForecast{err: tc.err}, &fakeTraining{}, nil)
		rec, _ := do(t, e, http.MethodGet, "/api/forecast?location=paris", "")
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestForecastRateLimited(t *testing.T) {
	e := newEcho(&fakeForecast{}, &fakeTraining{}, ratelimit.New(0.001, 1))
	if rec, _ := do(t, e, http.MethodGet, "/api/forecast?location=paris", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec, _ := do(t, e, http.MethodGet, "/api/forecast?location=paris", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
}

func TestTrainSyncAndAsync(t *testing.T) {
	body := `{"location":"paris","lag_depth":3}`

	tr := &fakeTraining{}
	rec, _ := do(t, newEcho(&fakeForecast{}, tr, nil), http.MethodPost, "/api/train", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d body=%s", rec.Code, rec.Body.String())
	}
	if tr.got.Location != "paris" || tr.got.LagDepth != 3 || tr.got.TestFraction != 0 || tr.got.ModelName != "" {
		t.Fatalf("train params = %+v", tr.got)
	}

	async := &fakeTraining{async: true}
	rec, env := do(t, newEcho(&fakeForecast{}, async, nil), http.MethodPost, "/api/train", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("async status = %d", rec.Code)
	}
	var st usecase.JobStatus
	if err := json.Unmarshal(env.Data, &st); err != nil || st.State != usecase.JobQueued {
		t.Fatalf("job status = %+v err=%v", st, err)
	}
}

func TestTrainErrors(t *testing.T) {
	e := newEcho(&fakeForecast{}, &fakeTraining{err: usecase.ErrTrainingLocked}, nil)
	if rec, _ := do(t, e, http.MethodPost, "/api/train", `{"location":"paris"}`); rec.Code != http.StatusConflict {
		t.Fatalf("locked status = %d, want 409", rec.Code)
	}
	if rec, _ := do(t, e, http.MethodPost, "/api/train", `{"lag_depth":2}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing location status = %d, want 400", rec.Code)
	}
}

func TestTrainStatus(t *testing.T) {
	tr := &fakeTraining{jobs: map[string]*usecase.JobStatus{
		"abc": {ID: "abc", State: usecase.JobRunning},
	}}
	e := newEcho(&fakeForecast{}, tr, nil)

	rec, env := do(t, e, http.MethodGet, "/api/train/abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st usecase.JobStatus
	if err := json.Unmarshal(env.Data, &st); err != nil || st.State != usecase.JobRunning {
		t.Fatalf("job = %+v err=%v", st, err)
	}
	if rec, _ := do(t, e, http.MethodGet, "/api/train/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job status = %d, want 404", rec.Code)
	}
}

func TestStreamForecast(t *testing.T) {
	srv := httptest.NewServer(newEcho(&fakeForecast{}, &fakeTraining{}, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/forecast?location=paris&days=2"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var frames []StreamMessage
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, b, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var m StreamMessage
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		frames = append(frames, m)
	}

	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3: %+v", len(frames), frames)
	}
	if frames[0].Type != "step" || frames[0].Step.Day != 1 || frames[1].Step.Day != 2 {
		t.Fatalf("step frames = %+v %+v", frames[0], frames[1])
	}
	if frames[2].Type != "done" || len(frames[2].Forecast.Steps) != 2 {
		t.Fatalf("done frame = %+v", frames[2])
	}
}

func TestStreamForecastError(t *testing.T) {
	fc := &fakeForecast{err: models.NewModelLoadError("m", "p", models.ErrModelNotFound)}
	srv := httptest.NewServer(newEcho(fc, &fakeTraining{}, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/forecast?location=paris"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m StreamMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "error" || m.Error == "" {
		t.Fatalf("frame = %s err=%v", b, err)
	}
}
