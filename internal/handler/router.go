package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	custommiddleware "github.com/mmeshcher/staysync/internal/middleware"
	"github.com/mmeshcher/staysync/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса StaySync.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.SecureHeaders(h.logger))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	limitLogin := httprate.Limit(h.loginRate, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.writeMessage(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		}),
	)

	everyone := []model.Role{model.RoleSuperuser, model.RoleManager, model.RoleStaff, model.RoleContractor}
	frontDesk := []model.Role{model.RoleSuperuser, model.RoleManager, model.RoleStaff}
	management := []model.Role{model.RoleSuperuser, model.RoleManager}

	r.Route("/api", func(r chi.Router) {
		r.Get("/session/staff", h.Directory)
		r.With(limitLogin).Post("/session", h.Login)
		r.With(limitLogin).Post("/setup/admin", h.CreateAdmin)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRoles(everyone...))

				r.Get("/session", h.CurrentSession)
				r.Delete("/session", h.Logout)

				r.Get("/maintenance", h.ListTickets)
				r.Post("/maintenance", h.AddTicket)
				r.Post("/maintenance/{id}/start", h.StartTicket)
				r.Post("/maintenance/{id}/resolve", h.ResolveTicket)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRoles(frontDesk...))

				r.Get("/dashboard", h.Dashboard)

				r.Get("/rooms", h.ListRooms)
				r.Patch("/rooms/{id}/status", h.SetRoomStatus)
				r.Post("/rooms/{id}/checkout", h.CheckoutRoom)

				r.Get("/guests", h.ListGuests)
				r.Post("/guests", h.BookGuest)
				r.Put("/guests/{id}", h.UpdateGuest)
				r.Get("/guests/{id}/bill", h.GuestBill)
				r.Post("/guests/{id}/payments", h.RecordPayment)

				r.Get("/staff", h.ListStaff)
				r.Patch("/staff/{id}/status", h.SetStaffStatus)

				r.Get("/history", h.History)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRoles(management...))

				r.Post("/rooms", h.AddRoom)
				r.Post("/rooms/setup", h.SetupRooms)
				r.Put("/rooms/{id}", h.UpdateRoom)
				r.Delete("/rooms/{id}", h.DeleteRoom)

				r.Post("/staff", h.AddStaff)
				r.Delete("/staff/{id}", h.DeleteStaff)

				r.Get("/accounting/transactions", h.ListTransactions)
				r.Get("/accounting/summary", h.AccountingSummary)
				r.Get("/accounting/export", h.ExportTransactions)

				r.Get("/data/export", h.ExportData)
				r.Post("/data/import", h.ImportData)
				r.Delete("/data", h.WipeData)

				r.Get("/settings", h.GetSettings)
				r.Put("/settings", h.UpdateSettings)
			})

			r.With(custommiddleware.RequireRoles(model.RoleSuperuser)).Get("/staff/pins", h.RecoverPINs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
