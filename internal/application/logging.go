package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/logging"
)

func defaultLogger(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return zap.NewNop()
}

func serviceLogger(ctx context.Context, base *zap.Logger, serviceName, operation string, fields ...zap.Field) *zap.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.String("service", serviceName))
	if operation != "" {
		all = append(all, zap.String("operation", operation))
	}
	all = append(all, fields...)
	return logger.With(all...)
}

// logOutcome writes the single result line every service operation emits.
func logOutcome(logger *zap.Logger, err error, success, failure string, fields ...zap.Field) {
	if err != nil {
		errFields := []zap.Field{zap.Error(err), zap.String("error_kind", ErrorKind(err))}
		var ioErr *IOError
		if errors.As(err, &ioErr) && ioErr.Err != nil {
			errFields = append(errFields, zap.NamedError("cause", ioErr.Err))
		}
		logger.Error(failure, errFields...)
		return
	}
	logger.Info(success, fields...)
}

// ErrorKind maps sentinel and validation errors to a stable reason code.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrEmptyBundle):
		return "empty"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrIOFailure):
		return "io_failure"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
