package handler

import (
	"encoding/json"
	"net/http"

	"credential-service/internal/biometric"
	"credential-service/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BiometricHandler handles HTTP requests for enrollment and
// verification ceremonies.
type BiometricHandler struct {
	biometrics *biometric.Service
	logger     *zap.Logger
}

func NewBiometricHandler(biometrics *biometric.Service, logger *zap.Logger) *BiometricHandler {
	return &BiometricHandler{
		biometrics: biometrics,
		logger:     logger,
	}
}

// RegisterRoutes registers biometric routes
func (h *BiometricHandler) RegisterRoutes(router chi.Router) {
	router.Route("/biometric", func(r chi.Router) {
		r.Get("/supported", h.Supported)
		r.Post("/enroll", h.Enroll)
		r.Post("/verify", h.Verify)
		r.Post("/attendance", h.Attendance)
	})
}

type enrollRequest struct {
	SubjectID   string `json:"subject_id"`
	SubjectType string `json:"subject_type"`
	DisplayName string `json:"display_name"`
}

type biometricVerifyRequest struct {
	SubjectID string `json:"subject_id"`
}

type attendanceRequest struct {
	SubjectID   string `json:"subject_id"`
	SubjectType string `json:"subject_type"`
	Context     string `json:"context"`
}

// Supported is the capability probe; UIs must check it before offering
// enroll/verify at all.
func (h *BiometricHandler) Supported(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, successResponse(map[string]bool{
		"supported": h.biometrics.IsSupported(),
	}, ""))
}

func (h *BiometricHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	result := h.biometrics.Enroll(r.Context(), req.SubjectID, models.SubjectType(req.SubjectType), req.DisplayName)
	writeJSON(w, statusForCode(result.Code), Response{
		Success: result.Success,
		Data:    result,
	})
}

func (h *BiometricHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req biometricVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	result := h.biometrics.Verify(r.Context(), req.SubjectID)
	writeJSON(w, statusForCode(result.Code), Response{
		Success: result.Success,
		Data:    result,
	})
}

func (h *BiometricHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	result := h.biometrics.VerifyAndMarkAttendance(r.Context(), req.SubjectID, models.SubjectType(req.SubjectType), req.Context)
	writeJSON(w, statusForCode(result.Code), Response{
		Success: result.Success,
		Data:    result,
	})
}

// statusForCode maps ceremony outcomes to HTTP statuses: domain
// failures stay 200 with a typed code, environmental rejections get
// their conventional status.
func statusForCode(code models.VerificationCode) int {
	switch code {
	case models.CodeUnsupportedPlatform:
		return http.StatusNotImplemented
	case models.CodeAlreadyInProgress:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}
