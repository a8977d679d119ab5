package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"credential-service/internal/models"
	"credential-service/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CredentialHandler handles HTTP requests for QR credential operations
type CredentialHandler struct {
	credentials *service.CredentialService
	logger      *zap.Logger
}

func NewCredentialHandler(credentials *service.CredentialService, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		logger:      logger,
	}
}

// RegisterRoutes registers credential routes
func (h *CredentialHandler) RegisterRoutes(router chi.Router) {
	router.Route("/credentials", func(r chi.Router) {
		r.Post("/", h.Issue)
		// Operator endpoint: full failure codes.
		r.Post("/verify", h.Verify)
		// Public scan endpoint: generic failure message only, so a
		// probing attacker cannot distinguish tampering from expiry.
		r.Post("/scan", h.Scan)
		r.Post("/{credentialID}/revoke", h.Revoke)
	})
}

type issueRequest struct {
	SubjectID    string `json:"subject_id"`
	SubjectType  string `json:"subject_type"`
	TenantID     string `json:"tenant_id"`
	ValidityDays int    `json:"validity_days"`
}

type verifyRequest struct {
	Encoded  string `json:"encoded"`
	TenantID string `json:"tenant_id"`
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

// Issue mints a credential; the caller renders the QR image from the
// returned encoded string.
func (h *CredentialHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	validity := time.Duration(req.ValidityDays) * 24 * time.Hour
	issued, err := h.credentials.Issue(r.Context(), req.SubjectID, models.SubjectType(req.SubjectType), req.TenantID, validity)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidSubjectID) || errors.Is(err, service.ErrInvalidTenantID) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse(err, "failed to issue credential"))
		return
	}

	writeJSON(w, http.StatusCreated, successResponse(issued, "credential issued"))
}

// Verify is the operator-facing check: the response carries the exact
// failure code.
func (h *CredentialHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	result := h.credentials.Verify(r.Context(), req.Encoded, req.TenantID)
	writeJSON(w, http.StatusOK, Response{
		Success: result.Success,
		Data:    result,
		Message: verificationMessage(result),
	})
}

// Scan is the public-facing check: failures collapse to one generic
// message and the failure code is withheld.
func (h *CredentialHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	result := h.credentials.Verify(r.Context(), req.Encoded, req.TenantID)
	if !result.Success {
		writeJSON(w, http.StatusOK, Response{
			Success: false,
			Message: "verification failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, successResponse(result, "credential verified"))
}

// Revoke invalidates a credential before expiry (lost card).
func (h *CredentialHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	credentialID := chi.URLParam(r, "credentialID")

	// Body is optional; an absent or malformed reason falls back to
	// the service default.
	var req revokeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.credentials.Revoke(r.Context(), credentialID, req.Reason); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidSubjectID) {
			status = http.StatusBadRequest
		} else if errors.Is(err, service.ErrRevocationStore) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse(err, "failed to revoke credential"))
		return
	}

	writeJSON(w, http.StatusOK, successResponse(nil, "credential revoked"))
}

func verificationMessage(result models.VerificationResult) string {
	if result.Success {
		return fmt.Sprintf("credential verified for %s", result.DisplayName)
	}
	return fmt.Sprintf("verification failed: %s", result.Code)
}
