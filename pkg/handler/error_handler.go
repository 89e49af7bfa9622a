package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/raisekit/pkg/logger"
)

// Classifier maps a domain error to an HTTPError. It reports false for
// errors it does not know.
type Classifier func(err error) (HTTPError, bool)

// NewErrorHandler renders every failure as a JSON envelope. Bind failures
// become 400/415, classified errors keep their code, the rest are 500.
// Client errors log at warn, server errors at error.
func NewErrorHandler(log *slog.Logger, classify Classifier) ErrorHandler {
	if log == nil {
		log = logger.Discard()
	}
	return func(ctx Context, err error) {
		httpErr := classifyError(err, classify)

		level := slog.LevelError
		if httpErr.Code < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(RequestIDFromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", httpErr.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if renderErr := JSONError(httpErr).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error", logger.Error(renderErr))
		}
	}
}

func classifyError(err error, classify Classifier) HTTPError {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, ErrUnsupportedMedia):
		return ErrUnsupportedType.WithMessage(err.Error())
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrInvalidPath):
		return ErrBadRequest.WithMessage(err.Error())
	}
	if classify != nil {
		if e, ok := classify(err); ok {
			return e
		}
	}
	return ErrInternalServerError
}
