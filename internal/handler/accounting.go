package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ListTransactions возвращает журнал операций.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, rep, err := h.service.ListTransactions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, txs, rep)
}

// AccountingSummary возвращает финансовую сводку.
func (h *Handler) AccountingSummary(w http.ResponseWriter, r *http.Request) {
	summary, rep, err := h.service.AccountingSummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, summary, rep)
}

// ExportTransactions отдаёт журнал операций файлом в формате csv, json или xlsx.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	export, _, err := h.service.ExportTransactions(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.WriteHeader(http.StatusOK)

	if err := export.Render(w); err != nil {
		h.logger.Error("render export", zap.String("format", string(export.Format)), zap.Error(err))
	}
}

// History возвращает архив завершённых проживаний.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	history, rep, err := h.service.History(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, history, rep)
}
