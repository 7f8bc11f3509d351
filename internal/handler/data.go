package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
)

type remoteRequest struct {
	Driver string `json:"driver" validate:"omitempty,oneof=postgres redis http"`
	URI    string `json:"uri"`
}

type settingsRequest struct {
	DataSource model.DataSource `json:"dataSource" validate:"required,oneof=Local Cloud"`
	DemoMode   bool             `json:"demoMode"`
	Remote     remoteRequest    `json:"remote"`
}

type importResponse struct {
	Restored []model.Collection `json:"restored"`
}

// ExportData отдаёт резервную копию всех коллекций файлом JSON.
func (h *Handler) ExportData(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ExportData(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	date, _, _ := strings.Cut(snap.Timestamp, "T")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "staysync_backup_"+date+".json"))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		h.logger.Error("encode backup", zap.Error(err))
	}
}

// ImportData восстанавливает коллекции из резервной копии.
// Коллекции, которых нет в файле, не затрагиваются.
func (h *Handler) ImportData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var snap model.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		h.writeMessage(w, http.StatusBadRequest, mirror.ErrInvalidSnapshot.Error())
		return
	}

	restored, err := h.service.ImportData(r.Context(), &snap)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if restored == nil {
		restored = []model.Collection{}
	}
	h.writeJSON(w, http.StatusOK, envelope{Data: importResponse{Restored: restored}})
}

// WipeData очищает локальную базу.
func (h *Handler) WipeData(w http.ResponseWriter, r *http.Request) {
	if err := h.service.WipeData(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings возвращает текущие настройки хранения.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, envelope{Data: h.service.Settings()})
}

// UpdateSettings применяет настройки и перезагружает коллекции из нового источника.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	settings := model.Settings{
		DataSource: req.DataSource,
		DemoMode:   req.DemoMode,
		Remote:     model.RemoteParams{Driver: req.Remote.Driver, URI: req.Remote.URI},
	}
	rep, err := h.service.UpdateSettings(r.Context(), settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, h.service.Settings(), rep)
}
