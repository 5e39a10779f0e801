package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"docverify-service/internal/settings"
	"docverify-service/internal/util"
)

// SettingsHandler handles HTTP requests for operator settings.
type SettingsHandler struct {
	settingsService *settings.Service
	logger          *zap.Logger
}

func NewSettingsHandler(settingsService *settings.Service, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		logger:          logger,
	}
}

func (h *SettingsHandler) RegisterRoutes(router chi.Router) {
	router.Route("/settings", func(r chi.Router) {
		r.Put("/admin-password", h.SetAdminPassword)
		r.Post("/admin-password/check", h.CheckAdminPassword)
		r.Get("/{key}", h.GetSetting)
		r.Put("/{key}", h.SetSetting)
	})
}

func (h *SettingsHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := chi.URLParam(r, "key")
	value, err := h.settingsService.Get(ctx, key)
	if err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to get setting")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(map[string]string{
		"key":   key,
		"value": value,
	}, "Setting retrieved"))
}

type setSettingRequest struct {
	Value string `json:"value"`
}

func (h *SettingsHandler) SetSetting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := chi.URLParam(r, "key")

	var req setSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.settingsService.Set(ctx, key, req.Value); err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to set setting")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "Setting updated"))
	h.logger.Info("Setting updated via HTTP", util.String("key", key))
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *SettingsHandler) SetAdminPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.settingsService.SetAdminPassword(ctx, req.Password); err != nil {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to set admin password")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "Admin password updated"))
	h.logger.Info("Admin password updated via HTTP")
}

func (h *SettingsHandler) CheckAdminPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	ok, err := h.settingsService.CheckAdminPassword(ctx, req.Password)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		respondWithError(w, h.logger, h.getStatusCode(err), err, "Failed to check admin password")
		return
	}

	if !ok {
		respondWithJSON(w, h.logger, http.StatusUnauthorized, errorResponse(
			errors.New("invalid password"), "Password check failed"))
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "Password accepted"))
}

func (h *SettingsHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, settings.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
