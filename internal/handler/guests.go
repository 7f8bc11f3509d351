package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/service"
)

type guestRequest struct {
	Name       string            `json:"name" validate:"required"`
	Email      string            `json:"email" validate:"omitempty,email"`
	Phone      string            `json:"phone"`
	CheckIn    string            `json:"checkIn" validate:"required,date"`
	CheckOut   string            `json:"checkOut" validate:"required,date"`
	RoomNumber string            `json:"roomNumber"`
	VIP        bool              `json:"vip"`
	Status     model.GuestStatus `json:"status" validate:"required,oneof=Reserved 'Checked In' 'Checked Out'"`
}

func (req guestRequest) input() service.GuestInput {
	return service.GuestInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		RoomNumber: req.RoomNumber,
		VIP:        req.VIP,
		Status:     req.Status,
	}
}

type paymentRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Date   string  `json:"date" validate:"omitempty,date"`
	Note   string  `json:"note"`
}

// ListGuests возвращает гостей вместе с текущим расчётом.
func (h *Handler) ListGuests(w http.ResponseWriter, r *http.Request) {
	guests, rep, err := h.service.ListGuests(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, guests, rep)
}

// BookGuest оформляет бронирование или заселение.
func (h *Handler) BookGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if !h.decode(w, r, &req) {
		return
	}

	guest, rep, err := h.service.BookGuest(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, guest, rep)
}

// UpdateGuest редактирует гостя, в том числе переселяет в другой номер.
func (h *Handler) UpdateGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, rep, err := h.service.UpdateGuest(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope{Data: res.Guest, Warnings: rep.Warnings, Notice: res.Notice})
}

// GuestBill возвращает расчёт гостя на сегодня.
func (h *Handler) GuestBill(w http.ResponseWriter, r *http.Request) {
	bill, rep, err := h.service.GuestBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, bill, rep)
}

// RecordPayment принимает платёж гостя.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, rep, err := h.service.RecordPayment(r.Context(), chi.URLParam(r, "id"), service.PaymentInput{
		Amount: req.Amount,
		Date:   req.Date,
		Note:   req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, tx, rep)
}
