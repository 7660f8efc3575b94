package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/event-planner/internal/logging"
	"github.com/example/event-planner/internal/persistence"
)

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrEventNotFound), errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	}

	var (
		intervalErr *InvalidIntervalError
		conflictErr *ConflictError
		vErr        *ValidationError
	)
	switch {
	case errors.As(err, &intervalErr):
		return "invalid_interval"
	case errors.As(err, &conflictErr):
		return "conflict"
	case errors.As(err, &vErr):
		return "validation"
	}

	return "unexpected"
}
