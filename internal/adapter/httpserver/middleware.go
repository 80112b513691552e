package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/radudiaconu0/sockudo/internal/platform/correlation"
	apperrors "github.com/radudiaconu0/sockudo/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromRequest(c.Request())
		c.Response().Header().Set(correlation.Header, id)
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if _, ok := errors.AsType[*echo.HTTPError](err); ok {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// errorLogLevels keeps client mistakes out of the Warn stream.
var errorLogLevels = map[apperrors.ErrorType]slog.Level{
	apperrors.TypeValidation:  slog.LevelInfo,
	apperrors.TypeNotFound:    slog.LevelInfo,
	apperrors.TypeRateLimited: slog.LevelInfo,
	apperrors.TypeUnavailable: slog.LevelWarn,
	apperrors.TypeInternal:    slog.LevelError,
}

func logError(c echo.Context, err *apperrors.Error) {
	level, ok := errorLogLevels[err.Type]
	if !ok {
		level = slog.LevelError
	}

	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil && level >= slog.LevelWarn {
		attrs = append(attrs, "cause", err.Cause)
	}

	slog.Log(c.Request().Context(), level, "Request failed", attrs...)
}
