package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// Recovery returns middleware that recovers from panics, logs the stack
// trace, and returns a 500 to the client. A panicking handler must never
// take the whole server down.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (returnErr error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					slog.Error("panic recovered",
						slog.Any("panic", r),
						slog.String("stack", string(stack)),
						slog.String("method", c.Request().Method),
						slog.String("path", c.Request().URL.Path),
					)

					// Generic JSON body; panic details never reach the client.
					returnErr = c.JSON(http.StatusInternalServerError, map[string]any{
						"success": false,
						"type":    "internal_error",
						"message": "internal server error",
					})
				}
			}()

			return next(c)
		}
	}
}
