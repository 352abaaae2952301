package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "Preda/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 handled by the echo error handler.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				l.Error("panic in http handler",
					applogger.String("panic", fmt.Sprint(r)),
					applogger.String("route", c.Path()),
					applogger.String("stack", string(debug.Stack())),
				)
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
