package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/services/forecaster"
	xhttp "WeatherCast/pkg/http"
	xlogger "WeatherCast/pkg/logger"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is one frame of a streamed forecast.
type StreamMessage struct {
	Type     string               `json:"type"`
	Step     *models.ForecastStep `json:"step,omitempty"`
	Forecast *models.Forecast     `json:"forecast,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// StreamForecast upgrades to a websocket and sends each step as soon as the
// forecaster produces it, then a final "done" frame carrying the full trace.
func (h *ForecastEchoHandler) StreamForecast(c echo.Context) error {
	const endpoint = "forecast_stream"
	defer observe(endpoint, time.Now())

	req := &models.ForecastRequest{}
	if verr := xhttp.BindRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer func() { _ = conn.Close() }()

	send := func(m StreamMessage) error {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, b)
	}

	fc, err := h.forecast.Stream(c.Request().Context(), paramsFrom(req), func(s models.ForecastStep) error {
		return send(StreamMessage{Type: "step", Step: &s})
	})
	switch {
	case err == nil:
		_ = send(StreamMessage{Type: "done", Forecast: fc})
	case errors.Is(err, forecaster.ErrStopped):
		h.logger.Debug("forecast stream stopped", xlogger.String("location", req.Location))
	default:
		ae := toAppError(err)
		_ = send(StreamMessage{Type: "error", Error: ae.Message})
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return nil
}
