package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type correlationKey struct{}

func InitLogger() {
	slog.SetDefault(NewLogger(os.Stdout))
}

func NewLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Logger returns the default logger annotated with the request's correlation id.
func Logger(ctx context.Context, attrs ...any) *slog.Logger {
	logger := slog.Default()
	if id := CorrelationID(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}
