package observability

import (
	"context"
	"net/http"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(ctx context.Context, serviceName string) (func(context.Context) error, http.Handler) {
	observability.InitLogger()
	tracerShutdown := observability.InitTracing(ctx, serviceName)
	return tracerShutdown, promhttp.Handler()
}
