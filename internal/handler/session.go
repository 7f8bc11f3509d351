package handler

import (
	"errors"
	"net/http"

	"github.com/mmeshcher/staysync/internal/middleware"
	"github.com/mmeshcher/staysync/internal/service"
)

type loginRequest struct {
	StaffID string `json:"staffId" validate:"required"`
	PIN     string `json:"pin" validate:"required,pin"`
}

type adminRequest struct {
	Name string `json:"name" validate:"required"`
	PIN  string `json:"pin" validate:"required,pin"`
}

// Login проверяет PIN сотрудника и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, rep, err := h.service.Authenticate(r.Context(), req.StaffID, req.PIN)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, middleware.Principal{StaffID: session.StaffID, Role: session.Role})
	h.respond(w, http.StatusOK, session, rep)
}

// CreateAdmin создаёт первого администратора и сразу входит под ним.
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, rep, err := h.service.CreateAdmin(r.Context(), req.Name, req.PIN)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, middleware.Principal{StaffID: session.StaffID, Role: session.Role})
	h.respond(w, http.StatusCreated, session, rep)
}

// CurrentSession возвращает сведения о вошедшем сотруднике.
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	session, err := h.service.SessionFor(r.Context(), p.StaffID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// сотрудник удалён после входа
			h.authMiddleware.ClearAuthCookie(w)
		}
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope{Data: session})
}

// Logout завершает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Directory возвращает список сотрудников без PIN-кодов для экрана входа.
func (h *Handler) Directory(w http.ResponseWriter, r *http.Request) {
	staff, rep, err := h.service.ListStaff(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, staff, rep)
}
