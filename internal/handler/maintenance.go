package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/service"
)

type ticketRequest struct {
	RoomNumber  string               `json:"roomNumber" validate:"required"`
	Description string               `json:"description" validate:"required"`
	Priority    model.TicketPriority `json:"priority" validate:"required,oneof=Low Medium High"`
	ReportedBy  string               `json:"reportedBy"`
}

type resolveRequest struct {
	Cost float64 `json:"cost" validate:"gte=0"`
	Note string  `json:"note"`
}

// ListTickets возвращает заявки на ремонт.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, rep, err := h.service.ListTickets(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, tickets, rep)
}

// AddTicket регистрирует заявку на ремонт.
func (h *Handler) AddTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if !h.decode(w, r, &req) {
		return
	}

	ticket, rep, err := h.service.AddTicket(r.Context(), service.TicketInput{
		RoomNumber:  req.RoomNumber,
		Description: req.Description,
		Priority:    req.Priority,
		ReportedBy:  req.ReportedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, ticket, rep)
}

// StartTicket берёт заявку в работу.
func (h *Handler) StartTicket(w http.ResponseWriter, r *http.Request) {
	ticket, rep, err := h.service.StartTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, ticket, rep)
}

// ResolveTicket закрывает заявку; ненулевая стоимость попадает в расходы.
func (h *Handler) ResolveTicket(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	ticket, rep, err := h.service.ResolveTicket(r.Context(), chi.URLParam(r, "id"), req.Cost, req.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, ticket, rep)
}
