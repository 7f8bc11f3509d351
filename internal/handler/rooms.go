package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/service"
)

type roomRequest struct {
	Number   string         `json:"number" validate:"required"`
	Type     model.RoomType `json:"type" validate:"required,oneof=Single Double Suite Deluxe"`
	Price    float64        `json:"price" validate:"gte=0"`
	Discount *float64       `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func (req roomRequest) input() service.RoomInput {
	return service.RoomInput{
		Number:   req.Number,
		Type:     req.Type,
		Price:    req.Price,
		Discount: req.Discount,
	}
}

type roomStatusRequest struct {
	Status model.RoomStatus `json:"status" validate:"required"`
}

type setupRequest struct {
	Floors        int     `json:"floors" validate:"min=1,max=99"`
	RoomsPerFloor int     `json:"roomsPerFloor" validate:"min=1,max=99"`
	BasePrice     float64 `json:"basePrice" validate:"gte=0"`
}

// Dashboard возвращает сводные показатели отеля.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, rep, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, d, rep)
}

// ListRooms возвращает все номера.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, rep, err := h.service.ListRooms(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, rooms, rep)
}

// AddRoom добавляет номер.
func (h *Handler) AddRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !h.decode(w, r, &req) {
		return
	}

	room, rep, err := h.service.AddRoom(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, room, rep)
}

// UpdateRoom редактирует номер.
func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !h.decode(w, r, &req) {
		return
	}

	room, rep, err := h.service.UpdateRoom(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, room, rep)
}

// DeleteRoom удаляет свободный номер.
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.DeleteRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rep.Degraded() {
		h.respond(w, http.StatusOK, nil, rep)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetRoomStatus меняет состояние номера: уборка, ремонт, готовность.
func (h *Handler) SetRoomStatus(w http.ResponseWriter, r *http.Request) {
	var req roomStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	room, rep, err := h.service.SetRoomStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, room, rep)
}

// SetupRooms генерирует номера мастером первоначальной настройки.
func (h *Handler) SetupRooms(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !h.decode(w, r, &req) {
		return
	}

	rooms, rep, err := h.service.SetupRooms(r.Context(), service.SetupPlan{
		Floors:        req.Floors,
		RoomsPerFloor: req.RoomsPerFloor,
		BasePrice:     req.BasePrice,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, rooms, rep)
}

// CheckoutRoom выселяет гостя из номера.
func (h *Handler) CheckoutRoom(w http.ResponseWriter, r *http.Request) {
	room, rep, err := h.service.CheckoutRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, room, rep)
}
