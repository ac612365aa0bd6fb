package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coursaly/payment-reconciler/internal/audit"
	"github.com/coursaly/payment-reconciler/internal/gateway"
	"github.com/coursaly/payment-reconciler/internal/transaction/application"
	"github.com/coursaly/payment-reconciler/pkg/idempotency"
	"github.com/coursaly/payment-reconciler/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

// WebhookHandler is the server-to-server notification endpoint. Policy:
// once the delivery is durably audited, the gateway gets a 200 even when
// processing failed, so a flaky side effect cannot cause a retry storm.
// Only malformed input (400) and unknown gateway configuration (404) are
// client errors.
type WebhookHandler struct {
	log      *slog.Logger
	registry *gateway.Registry
	settings application.SettingsRepository
	auditLog application.AuditLog
	orch     *application.Orchestrator
	dedup    application.DeliveryDedup
	tracer   trace.Tracer
}

func NewWebhookHandler(log *slog.Logger, registry *gateway.Registry, settings application.SettingsRepository,
	auditLog application.AuditLog, orch *application.Orchestrator, dedup application.DeliveryDedup) *WebhookHandler {
	return &WebhookHandler{
		log:      log,
		registry: registry,
		settings: settings,
		auditLog: auditLog,
		orch:     orch,
		dedup:    dedup,
		tracer:   otel.Tracer("webhook-http"),
	}
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/{gateway}/{environmentID}", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleWebhook")
	defer span.End()

	gatewayCode := chi.URLParam(r, "gateway")
	environmentID, err := strconv.ParseInt(chi.URLParam(r, "environmentID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid environment id", http.StatusBadRequest)
		return
	}

	adapter, err := h.registry.Lookup(gatewayCode)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(gatewayCode, "unknown_gateway").Inc()
		http.Error(w, "unknown gateway", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	// The audit row opens before any processing so even rejected
	// deliveries leave a trace.
	auditID, err := h.auditLog.Open(ctx, audit.Entry{
		Gateway:       gatewayCode,
		EnvironmentID: environmentID,
		Payload:       body,
		Headers:       flattenHeader(r.Header),
	})
	if err != nil {
		h.log.Error("audit open failed", "gateway", gatewayCode, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	setting, err := h.settings.FindActive(ctx, environmentID, gatewayCode)
	if err != nil {
		if errors.Is(err, application.ErrNoGatewayConfig) {
			h.closeAudit(ctx, auditID, audit.StatusError, "", "", "no active gateway configuration")
			metrics.WebhooksTotal.WithLabelValues(gatewayCode, "no_config").Inc()
			http.Error(w, "no active gateway configuration", http.StatusNotFound)
			return
		}
		h.closeAudit(ctx, auditID, audit.StatusError, "", "", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := adapter.VerifySignature(body, r.Header, setting.Credentials); err != nil {
		h.log.Warn("webhook signature rejected", "gateway", gatewayCode, "environment_id", environmentID, "err", err)
		h.closeAudit(ctx, auditID, audit.StatusFailure, "", "", "signature verification failed")
		metrics.WebhooksTotal.WithLabelValues(gatewayCode, "bad_signature").Inc()
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ev, err := adapter.ParseEvent(body, r.Header)
	if err != nil {
		h.closeAudit(ctx, auditID, audit.StatusFailure, "", "", "malformed payload")
		metrics.WebhooksTotal.WithLabelValues(gatewayCode, "malformed").Inc()
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	dedupKey := idempotency.Key(gatewayCode, ev.EventID)
	seen, err := h.dedup.Seen(ctx, dedupKey)
	if err != nil {
		// Dedup is best effort; the repository CAS still protects us.
		h.log.Warn("delivery dedup unavailable", "err", err)
	}
	if seen {
		h.closeAudit(ctx, auditID, audit.StatusSuccess, "", "", "duplicate delivery")
		metrics.WebhooksTotal.WithLabelValues(gatewayCode, "duplicate").Inc()
		h.ack(w, "duplicate")
		return
	}

	tx, result, err := h.orch.Apply(ctx, ev, environmentID)
	switch {
	case errors.Is(err, application.ErrNotFound):
		// Acknowledge without revealing whether any transaction exists
		// for the reference. The dedup key stays unclaimed: a retry may
		// match once the transaction row lands.
		h.closeAudit(ctx, auditID, audit.StatusFailure, "", "", "no matching transaction")
		metrics.WebhooksTotal.WithLabelValues(gatewayCode, "unmatched").Inc()
		h.ack(w, "received")
		return
	case err != nil:
		h.log.Error("webhook processing failed", "gateway", gatewayCode, "audit_id", auditID, "err", err)
		h.closeAudit(ctx, auditID, audit.StatusError, "", "", err.Error())
		metrics.WebhooksTotal.WithLabelValues(gatewayCode, "error").Inc()
		h.ack(w, "received")
		return
	}

	if err := h.dedup.Mark(ctx, dedupKey); err != nil {
		h.log.Warn("delivery dedup mark failed", "err", err)
	}
	h.closeAudit(ctx, auditID, audit.StatusSuccess, "transaction", tx.TransactionID, string(result))
	metrics.WebhooksTotal.WithLabelValues(gatewayCode, string(result)).Inc()
	h.ack(w, string(result))
}

func (h *WebhookHandler) ack(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (h *WebhookHandler) closeAudit(ctx context.Context, id int64, status audit.Status, entityType, entityID, note string) {
	if err := h.auditLog.Close(ctx, id, status, entityType, entityID, note); err != nil {
		h.log.Error("audit close failed", "audit_id", id, "err", err)
	}
}

func flattenHeader(header http.Header) map[string]string {
	m := make(map[string]string, len(header))
	for k := range header {
		m[k] = header.Get(k)
	}
	return m
}
