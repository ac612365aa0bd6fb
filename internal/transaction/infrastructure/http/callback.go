package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coursaly/payment-reconciler/internal/audit"
	"github.com/coursaly/payment-reconciler/internal/gateway"
	"github.com/coursaly/payment-reconciler/internal/transaction/application"
	"github.com/coursaly/payment-reconciler/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// CallbackHandler serves the browser redirects back from hosted payment
// pages. Unlike webhooks it renders HTML outcome pages. A cancelled
// status only renders; the transaction stays pending until the gateway's
// own webhook settles it, because the customer may still retry the
// hosted flow.
type CallbackHandler struct {
	log      *slog.Logger
	auditLog application.AuditLog
	orch     *application.Orchestrator
	tracer   trace.Tracer
}

func NewCallbackHandler(log *slog.Logger, auditLog application.AuditLog, orch *application.Orchestrator) *CallbackHandler {
	return &CallbackHandler{
		log:      log,
		auditLog: auditLog,
		orch:     orch,
		tracer:   otel.Tracer("callback-http"),
	}
}

func (h *CallbackHandler) Register(r chi.Router) {
	r.Get("/callback/success/{environmentID}", h.success)
	r.Get("/callback/failure/{environmentID}", h.failure)
}

func (h *CallbackHandler) success(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, gateway.OutcomeSuccess)
}

func (h *CallbackHandler) failure(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, gateway.OutcomeFailure)
}

func (h *CallbackHandler) handle(w http.ResponseWriter, r *http.Request, channel gateway.Outcome) {
	ctx, span := h.tracer.Start(r.Context(), "HandleCallback")
	defer span.End()

	environmentID, err := strconv.ParseInt(chi.URLParam(r, "environmentID"), 10, 64)
	if err != nil {
		h.render(w, pageError, "")
		return
	}

	query := r.URL.Query()
	ref := application.Reference{TransactionID: query.Get("transaction_id")}
	if ref.TransactionID == "" {
		ref.TransactionID = query.Get("payment_ref")
	}
	if ref.TransactionID == "" {
		ref.TransactionID = query.Get("order_id")
	}

	auditID, err := h.auditLog.Open(ctx, audit.Entry{
		Gateway:       "callback",
		EnvironmentID: environmentID,
		Payload:       []byte(r.URL.RawQuery),
		Headers:       flattenHeader(r.Header),
	})
	if err != nil {
		h.log.Error("audit open failed", "err", err)
		h.render(w, pageError, "")
		return
	}

	outcome := channel
	if s := statusToken(query.Get("status")); s != "" {
		outcome = s
	}

	tx, err := h.orch.Resolve(ctx, ref, environmentID)
	if err != nil {
		if !errors.Is(err, application.ErrNotFound) {
			h.log.Error("callback resolution failed", "err", err)
		}
		h.closeAudit(ctx, auditID, audit.StatusFailure, "", "", "no matching transaction")
		metrics.CallbacksTotal.WithLabelValues("error").Inc()
		h.render(w, pageError, "")
		return
	}

	if outcome == gateway.OutcomeCancelled {
		h.closeAudit(ctx, auditID, audit.StatusSuccess, "transaction", tx.TransactionID, "cancelled rendered, no transition")
		metrics.CallbacksTotal.WithLabelValues("cancelled").Inc()
		h.render(w, pageCancelled, tx.TransactionID)
		return
	}

	ev := gateway.Event{
		Gateway:       tx.Gateway,
		EventID:       "callback:" + tx.TransactionID,
		TransactionID: tx.TransactionID,
		Outcome:       outcome,
		GatewayStatus: "callback:" + query.Get("status"),
		Raw:           []byte(r.URL.RawQuery),
	}
	tx, result, err := h.orch.Apply(ctx, ev, environmentID)
	if err != nil {
		h.log.Error("callback processing failed", "audit_id", auditID, "err", err)
		h.closeAudit(ctx, auditID, audit.StatusError, "", "", err.Error())
		metrics.CallbacksTotal.WithLabelValues("error").Inc()
		h.render(w, pageError, "")
		return
	}
	h.closeAudit(ctx, auditID, audit.StatusSuccess, "transaction", tx.TransactionID, string(result))

	if outcome == gateway.OutcomeSuccess {
		metrics.CallbacksTotal.WithLabelValues("success").Inc()
		h.render(w, pageSuccess, tx.TransactionID)
		return
	}
	metrics.CallbacksTotal.WithLabelValues("failed").Inc()
	h.render(w, pageFailed, tx.TransactionID)
}

// statusToken maps the provider-supplied status query parameter onto a
// canonical outcome. Unknown tokens defer to the endpoint's channel.
func statusToken(s string) gateway.Outcome {
	switch s {
	case "success", "successful", "SUCCESS", "1":
		return gateway.OutcomeSuccess
	case "failed", "failure", "FAILED", "0":
		return gateway.OutcomeFailure
	case "cancelled", "canceled", "cancel", "CANCELLED":
		return gateway.OutcomeCancelled
	}
	return ""
}

func (h *CallbackHandler) closeAudit(ctx context.Context, id int64, status audit.Status, entityType, entityID, note string) {
	if err := h.auditLog.Close(ctx, id, status, entityType, entityID, note); err != nil {
		h.log.Error("audit close failed", "audit_id", id, "err", err)
	}
}
