package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PanicBody is the response sent when a handler panics. It has the same
// code/message shape the domain handlers use for their errors.
var PanicBody = map[string]string{
	"code":    "InternalError",
	"message": "internal server error",
}

// Recovery turns a handler panic into a 500 and logs it with the request and
// actor it happened for. http.ErrAbortHandler is re-raised so net/http can
// drop the connection as intended.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
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

				rid, _ := c.Get("request_id").(string)
				actorID, _ := c.Get("actor_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("actor_id", actorID).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, PanicBody)
			}()
			return next(c)
		}
	}
}
