package api

import (
	"errors"

	"FlashScan/internal/services/flash"
	"FlashScan/internal/services/signals"
	"FlashScan/internal/usecase"
	xhttp "FlashScan/pkg/http"
)

// ToAppError maps analysis errors onto the API error envelope.
func ToAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, flash.ErrRegistryExhausted):
		return xhttp.UnprocessableError("ERR_REGISTRY_EXHAUSTED", err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrTooManyBars):
		return xhttp.UnprocessableError("ERR_TOO_MANY_BARS", err.Error()).WithError(err)
	case errors.Is(err, flash.ErrMalformedBar):
		e := xhttp.BadRequestError(err.Error()).WithError(err)
		var be *flash.BarError
		if errors.As(err, &be) {
			e.WithField("bars")
			e.WithParam("index", be.Index)
		}
		return e
	case errors.Is(err, flash.ErrInvalidConfiguration),
		errors.Is(err, signals.ErrInvalidParams),
		errors.Is(err, usecase.ErrInvalidRequest):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}
