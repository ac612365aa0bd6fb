package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coursaly/payment-reconciler/internal/audit"
	"github.com/coursaly/payment-reconciler/internal/transaction/application"
	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
	"github.com/go-chi/chi/v5"
)

// AdminHandler exposes the two operator surfaces: refund status updates
// and audit-log replay. These are the only ways into the refund states
// and the only redelivery mechanism.
type AdminHandler struct {
	log      *slog.Logger
	orch     *application.Orchestrator
	replayer *application.Replayer
}

func NewAdminHandler(log *slog.Logger, orch *application.Orchestrator, replayer *application.Replayer) *AdminHandler {
	return &AdminHandler{log: log, orch: orch, replayer: replayer}
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/transactions/{transactionID}/status", h.updateStatus)
	r.Post("/admin/audit/{auditID}/replay", h.replay)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	err := h.orch.AdminUpdateStatus(r.Context(), transactionID, domain.Status(req.Status))
	switch {
	case errors.Is(err, application.ErrNotFound):
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	case errors.Is(err, application.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.log.Error("admin status update failed", "transaction_id", transactionID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"transaction_id": transactionID, "status": req.Status})
}

func (h *AdminHandler) replay(w http.ResponseWriter, r *http.Request) {
	auditID, err := strconv.ParseInt(chi.URLParam(r, "auditID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid audit id", http.StatusBadRequest)
		return
	}

	tx, result, err := h.replayer.Replay(r.Context(), auditID)
	switch {
	case errors.Is(err, application.ErrNotFound), errors.Is(err, audit.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("audit replay failed", "audit_id", auditID, "err", err)
		http.Error(w, "replay failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"transaction_id": tx.TransactionID,
		"result":         string(result),
	})
}
