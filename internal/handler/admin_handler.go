package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"credential-service/internal/audit"
	"credential-service/internal/devices"
	"credential-service/internal/models"
	"credential-service/internal/stats"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler serves the operator surface: the live audit feed,
// exports, dashboard stats, and the device registry.
type AdminHandler struct {
	auditLog *audit.Log
	registry *devices.Registry
	logger   *zap.Logger
}

func NewAdminHandler(auditLog *audit.Log, registry *devices.Registry, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		auditLog: auditLog,
		registry: registry,
		logger:   logger,
	}
}

// RegisterRoutes registers audit, stats, and device routes
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Route("/audit", func(r chi.Router) {
		r.Get("/records", h.Records)
		r.Get("/export", h.Export)
		r.Delete("/records", h.Clear)
	})

	router.Get("/stats", h.Stats)

	router.Route("/devices", func(r chi.Router) {
		r.Get("/", h.ListDevices)
		r.Post("/", h.ConnectDevice)
		r.Patch("/{deviceID}/status", h.UpdateDeviceStatus)
	})
}

func (h *AdminHandler) Records(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, successResponse(h.auditLog.Snapshot(), ""))
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := audit.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = audit.FormatJSON
	}

	out, err := h.auditLog.Export(format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "export failed"))
		return
	}

	switch format {
	case audit.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-records.csv"`)
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// Clear empties the live feed; an explicit operator action.
func (h *AdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.auditLog.Clear()
	h.logger.Info("audit feed cleared by operator")
	writeJSON(w, http.StatusOK, successResponse(nil, "audit records cleared"))
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s := stats.Compute(h.auditLog.Snapshot(), h.registry.List(), stats.Options{})
	writeJSON(w, http.StatusOK, successResponse(s, ""))
}

func (h *AdminHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, successResponse(h.registry.List(), ""))
}

type connectDeviceRequest struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

func (h *AdminHandler) ConnectDevice(w http.ResponseWriter, r *http.Request) {
	var req connectDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	rec, err := h.registry.Connect(r.Context(), models.DeviceRecord{
		ID:       req.ID,
		Type:     models.DeviceType(req.Type),
		Location: req.Location,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "failed to register device"))
		return
	}
	writeJSON(w, http.StatusCreated, successResponse(rec, "device connected"))
}

type deviceStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandler) UpdateDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req deviceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	rec, err := h.registry.UpdateStatus(r.Context(), deviceID, models.DeviceStatus(req.Status))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, devices.ErrDeviceNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse(err, "failed to update device status"))
		return
	}
	writeJSON(w, http.StatusOK, successResponse(rec, "device status updated"))
}
