package http

import (
	"net/http"

	"github.com/coursaly/payment-reconciler/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(webhook *WebhookHandler, callback *CallbackHandler, admin *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	callback.Register(r)
	admin.Register(r)
	// Webhook routes last: /{gateway}/{environmentID} is a catch-all.
	webhook.Register(r)

	return r
}
