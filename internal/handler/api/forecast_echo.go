package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/service/metrics"
	"WeatherCast/internal/service/ratelimit"
	"WeatherCast/internal/services/forecaster"
	"WeatherCast/internal/usecase"
	xhttp "WeatherCast/pkg/http"
	xlogger "WeatherCast/pkg/logger"
)

// ForecastService is the forecasting side of the use case layer.
type ForecastService interface {
	Predict(ctx context.Context, p usecase.ForecastParams) (*models.Forecast, error)
	Stream(ctx context.Context, p usecase.ForecastParams, onStep forecaster.StepFunc) (*models.Forecast, error)
}

// TrainingService accepts training requests and reports their progress.
type TrainingService interface {
	Submit(ctx context.Context, p usecase.TrainParams) (*usecase.JobStatus, error)
	Status(ctx context.Context, id string) (*usecase.JobStatus, error)
	Async() bool
}

// ForecastEchoHandler serves the training and forecasting API.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	forecast ForecastService
	training TrainingService
	rl       *ratelimit.Limiter
}

func NewForecastEchoHandler(logger *xlogger.Logger, forecast ForecastService, training TrainingService, rl *ratelimit.Limiter) *ForecastEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, forecast: forecast, training: training, rl: rl}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/train", h.Train)
	g.GET("/train/:id", h.TrainStatus)
	g.GET("/forecast", h.Forecast)

	e.GET("/ws/forecast", h.StreamForecast)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *ForecastEchoHandler) Train(c echo.Context) error {
	const endpoint = "train"
	defer observe(endpoint, time.Now())

	req := &models.TrainRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "400").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	st, err := h.training.Submit(c.Request().Context(), usecase.TrainParams{
		Source:       req.Source,
		Location:     req.Location,
		Target:       req.Target,
		LagDepth:     req.LagDepth,
		TestFraction: req.TestFraction,
		ModelName:    req.Model,
	})
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	if h.training.Async() {
		return xhttp.AcceptedResponse(c, st)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *ForecastEchoHandler) TrainStatus(c echo.Context) error {
	const endpoint = "train_status"
	defer observe(endpoint, time.Now())

	st, err := h.training.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	const endpoint = "forecast"
	defer observe(endpoint, time.Now())

	req := &models.ForecastRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "400").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	fc, err := h.forecast.Predict(c.Request().Context(), paramsFrom(req))
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, fc)
}

func (h *ForecastEchoHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl == nil || h.rl.Allow(c.RealIP()+":"+endpoint) {
		return true
	}
	metrics.APIRateLimited.WithLabelValues(endpoint).Inc()
	h.logger.Warn("request rate limited",
		xlogger.String("endpoint", endpoint),
		xlogger.String("remote", c.RealIP()),
	)
	return false
}

func (h *ForecastEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	ae := toAppError(err)
	metrics.APIErrors.WithLabelValues(endpoint, strconv.Itoa(ae.Status)).Inc()
	if ae.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, ae)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func paramsFrom(req *models.ForecastRequest) usecase.ForecastParams {
	return usecase.ForecastParams{
		ModelName: req.Model,
		Source:    req.Source,
		Location:  req.Location,
		Days:      req.Days,
	}
}
