package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope wraps every API body. Status repeats the HTTP status.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page is the payload of list endpoints.
type Page struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data)
}

func AcceptedResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusAccepted, data)
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return respond(c, http.StatusOK, Page{Rows: rows, Total: total})
}

// BadRequestResponse is used with the []FieldError returned by ReadAndValidateRequest.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusBadRequest, data)
}

// AppErrorResponse writes an *AppError with its own status. Other errors
// become an opaque 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalErrorf("something went wrong")
	}
	return respond(c, appErr.Status, []*AppError{appErr})
}
