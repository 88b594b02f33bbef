package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope. Its status mirrors the HTTP status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes a 200 envelope.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes a 400 envelope, usually carrying []ValidationError.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// TooManyRequestsResponse writes the rate limit error.
func TooManyRequestsResponse(c echo.Context) error {
	return AppErrorResponse(c, TooManyRequestsError("rate limit exceeded"))
}

// AppErrorResponse writes err as a single-item error list with the AppError status. Any other
// error becomes an opaque 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return DataResponse(c, http.StatusInternalServerError, []*AppError{InternalError("something went wrong")})
}
