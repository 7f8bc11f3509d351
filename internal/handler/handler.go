// Package handler содержит HTTP-обработчики API StaySync.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/billing"
	"github.com/mmeshcher/staysync/internal/middleware"
	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/report"
	"github.com/mmeshcher/staysync/internal/service"
	"github.com/mmeshcher/staysync/internal/validation"
)

// maxBodyBytes ограничивает размер тела запроса, включая файл резервной копии.
const maxBodyBytes = 32 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, staffID, pin string) (service.Session, mirror.Report, error)
	CreateAdmin(ctx context.Context, name, pin string) (service.Session, mirror.Report, error)
	SessionFor(ctx context.Context, staffID string) (service.Session, error)

	Dashboard(ctx context.Context) (service.Dashboard, mirror.Report, error)

	ListRooms(ctx context.Context) ([]model.Room, mirror.Report, error)
	AddRoom(ctx context.Context, in service.RoomInput) (model.Room, mirror.Report, error)
	UpdateRoom(ctx context.Context, id string, in service.RoomInput) (model.Room, mirror.Report, error)
	DeleteRoom(ctx context.Context, id string) (mirror.Report, error)
	SetRoomStatus(ctx context.Context, id string, status model.RoomStatus) (model.Room, mirror.Report, error)
	SetupRooms(ctx context.Context, plan service.SetupPlan) ([]model.Room, mirror.Report, error)
	CheckoutRoom(ctx context.Context, roomID string) (model.Room, mirror.Report, error)

	ListGuests(ctx context.Context) ([]service.GuestView, mirror.Report, error)
	BookGuest(ctx context.Context, in service.GuestInput) (model.Guest, mirror.Report, error)
	UpdateGuest(ctx context.Context, id string, in service.GuestInput) (service.GuestUpdate, mirror.Report, error)
	GuestBill(ctx context.Context, guestID string) (billing.Bill, mirror.Report, error)
	RecordPayment(ctx context.Context, guestID string, in service.PaymentInput) (model.Transaction, mirror.Report, error)

	ListTickets(ctx context.Context) ([]model.MaintenanceTicket, mirror.Report, error)
	AddTicket(ctx context.Context, in service.TicketInput) (model.MaintenanceTicket, mirror.Report, error)
	StartTicket(ctx context.Context, id string) (model.MaintenanceTicket, mirror.Report, error)
	ResolveTicket(ctx context.Context, id string, cost float64, note string) (model.MaintenanceTicket, mirror.Report, error)

	ListStaff(ctx context.Context) ([]model.Staff, mirror.Report, error)
	AddStaff(ctx context.Context, in service.StaffInput) (model.Staff, mirror.Report, error)
	DeleteStaff(ctx context.Context, id string) (mirror.Report, error)
	SetStaffStatus(ctx context.Context, id string, status model.DutyStatus) (model.Staff, mirror.Report, error)
	RecoverPINs(ctx context.Context) ([]model.Staff, mirror.Report, error)

	ListTransactions(ctx context.Context) ([]model.Transaction, mirror.Report, error)
	AccountingSummary(ctx context.Context) (service.Summary, mirror.Report, error)
	ExportTransactions(ctx context.Context, format string) (service.Export, mirror.Report, error)
	History(ctx context.Context) ([]model.BookingHistory, mirror.Report, error)

	ExportData(ctx context.Context) (*model.Snapshot, error)
	ImportData(ctx context.Context, snap *model.Snapshot) ([]model.Collection, error)
	WipeData(ctx context.Context) error
	Settings() model.Settings
	UpdateSettings(ctx context.Context, settings model.Settings) (mirror.Report, error)
}

// Handler реализует HTTP-обработчики API StaySync.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate
	loginRate      int
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// loginRate — число попыток входа в минуту с одного адреса.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, loginRate int) *Handler {
	if loginRate <= 0 {
		loginRate = 10
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validation.New(),
		loginRate:      loginRate,
	}
}

// envelope — общий формат JSON-ответа: данные и предупреждения зеркала.
type envelope struct {
	Data     any              `json:"data,omitempty"`
	Warnings []mirror.Warning `json:"warnings,omitempty"`
	Notice   string           `json:"notice,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any, rep mirror.Report) {
	h.writeJSON(w, status, envelope{Data: data, Warnings: rep.Warnings})
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// decode читает JSON-тело и проверяет его правилами validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.writeMessage(w, http.StatusUnprocessableEntity, validation.Message(err))
		return false
	}
	return true
}

// fail переводит ошибку сервиса в HTTP-статус.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, mirror.ErrInvalidSettings):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrRoomUnavailable),
		errors.Is(err, service.ErrRoomOccupied),
		errors.Is(err, service.ErrRoomNumberTaken),
		errors.Is(err, service.ErrRoomHasNoGuest),
		errors.Is(err, service.ErrRoomsExist),
		errors.Is(err, service.ErrTicketState),
		errors.Is(err, service.ErrAdminExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, mirror.ErrInvalidSnapshot),
		errors.Is(err, report.ErrUnknownFormat):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		h.writeMessage(w, status, http.StatusText(status))
		return
	}
	h.writeMessage(w, status, err.Error())
}
