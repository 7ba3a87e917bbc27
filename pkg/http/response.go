package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the {status, message, data} envelope.
func DataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

// BadRequestResponse carries validation details, usually []ValidationError.
func BadRequestResponse(c echo.Context, details interface{}) error {
	return DataResponse(c, http.StatusBadRequest, details)
}

// AppErrorResponse renders an *AppError anywhere in err's chain with its own
// status. Anything else becomes an opaque 500 so internals never leak.
func AppErrorResponse(c echo.Context, err error) error {
	var ae *AppError
	if !errors.As(err, &ae) {
		return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return DataResponse(c, status, []*AppError{ae})
}
