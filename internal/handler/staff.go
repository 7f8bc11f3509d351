package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/staysync/internal/middleware"
	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/service"
)

type staffRequest struct {
	Name   string           `json:"name" validate:"required"`
	Role   model.StaffRole  `json:"role" validate:"required,oneof=Superuser Manager Housekeeping Reception Maintenance"`
	Status model.DutyStatus `json:"status" validate:"required,oneof='On Duty' 'Off Duty' Break"`
	Shift  string           `json:"shift"`
	PIN    string           `json:"pin" validate:"required,pin"`
}

type dutyRequest struct {
	Status model.DutyStatus `json:"status" validate:"required,oneof='On Duty' 'Off Duty' Break"`
}

// ListStaff возвращает сотрудников без PIN-кодов.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, rep, err := h.service.ListStaff(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, staff, rep)
}

// AddStaff добавляет сотрудника. Суперпользователя может добавить только суперпользователь.
func (h *Handler) AddStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, _ := middleware.PrincipalFromContext(r.Context())
	if req.Role == model.StaffSuperuser && p.Role != model.RoleSuperuser {
		h.writeMessage(w, http.StatusForbidden, "only a superuser can add a superuser")
		return
	}

	member, rep, err := h.service.AddStaff(r.Context(), service.StaffInput{
		Name:   req.Name,
		Role:   req.Role,
		Status: req.Status,
		Shift:  req.Shift,
		PIN:    req.PIN,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, member, rep)
}

// DeleteStaff удаляет сотрудника. Удалить самого себя нельзя.
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, _ := middleware.PrincipalFromContext(r.Context())
	if p.StaffID == id {
		h.writeMessage(w, http.StatusConflict, "cannot delete the signed-in account")
		return
	}

	rep, err := h.service.DeleteStaff(r.Context(), id)
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

// SetStaffStatus меняет состояние смены сотрудника.
func (h *Handler) SetStaffStatus(w http.ResponseWriter, r *http.Request) {
	var req dutyRequest
	if !h.decode(w, r, &req) {
		return
	}

	member, rep, err := h.service.SetStaffStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, member, rep)
}

// RecoverPINs возвращает PIN-коды сотрудников.
func (h *Handler) RecoverPINs(w http.ResponseWriter, r *http.Request) {
	staff, rep, err := h.service.RecoverPINs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, staff, rep)
}
