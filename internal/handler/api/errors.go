package api

import (
	"errors"

	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/usecase"
	xhttp "WeatherCast/pkg/http"
)

// toAppError maps use case failures onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var de *models.DataError
	switch {
	case errors.As(err, &de):
		return xhttp.UnprocessableError(de.Error()).WithError(err)
	case errors.Is(err, models.ErrModelNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case models.IsModelLoadError(err):
		ae := xhttp.InternalError(err.Error()).WithError(err)
		ae.Code = "ERR_MODEL_LOAD"
		return ae
	case errors.Is(err, usecase.ErrSourceUnavailable), errors.Is(err, models.ErrHorizon):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrJobNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrTrainingLocked):
		return xhttp.ConflictError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
