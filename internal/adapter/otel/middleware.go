package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Middleware wraps an http.Handler with OpenTelemetry instrumentation.
func Middleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "warden.http")
}
