package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credential-service/internal/audit"
	"credential-service/internal/biometric"
	"credential-service/internal/config"
	"credential-service/internal/devices"
	"credential-service/internal/directory"
	"credential-service/internal/models"
	"credential-service/internal/qrcode"
	"credential-service/internal/service"

	"go.uber.org/zap"
)

type unsupportedAuth struct{}

func (unsupportedAuth) Supported() bool { return false }
func (unsupportedAuth) Register(context.Context, string, string) ([]byte, error) {
	return nil, biometric.ErrCeremonyFailed
}
func (unsupportedAuth) Assert(context.Context, string, []byte) error {
	return biometric.ErrCeremonyFailed
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	log := audit.NewLog(50, logger)
	codec := qrcode.NewCodec("MASOMO", []byte("test-secret"), 365*24*time.Hour)
	dir := directory.NewStaticDirectory(directory.Subject{
		ID:          "STU001",
		Type:        models.SubjectStudent,
		DisplayName: "Asha Mwangi",
		TenantID:    "school-1",
	})
	verifier := qrcode.NewVerifier(codec, dir, nil, log, logger)
	credentials := service.NewCredentialService(codec, verifier, nil, log, 365*24*time.Hour, logger)

	biometrics := biometric.NewService(unsupportedAuth{}, biometric.NewMemoryStore(), nil, log, config.BiometricConfig{
		CeremonyTimeout: time.Second,
		SpoofThreshold:  3,
		SpoofWindow:     time.Minute,
		Confidence:      95,
	}, logger)

	registry := devices.NewRegistry(nil, logger)

	return NewRouter(
		NewCredentialHandler(credentials, logger),
		NewBiometricHandler(biometrics, logger),
		NewAdminHandler(log, registry, logger),
		logger,
	)
}

func postJSON(t *testing.T, router http.Handler, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestIssueAndVerifyOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	w, resp := postJSON(t, router, "/api/v1/credentials", map[string]any{
		"subject_id":    "STU001",
		"subject_type":  "STUDENT",
		"tenant_id":     "school-1",
		"validity_days": 365,
	})
	if w.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("issue: status=%d resp=%+v", w.Code, resp)
	}

	var issued service.IssuedCredential
	raw, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(raw, &issued); err != nil {
		t.Fatalf("decode issued: %v", err)
	}
	if issued.Encoded == "" {
		t.Fatal("no encoded credential in response")
	}

	w, resp = postJSON(t, router, "/api/v1/credentials/verify", map[string]any{
		"encoded":   issued.Encoded,
		"tenant_id": "school-1",
	})
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("verify: status=%d resp=%+v", w.Code, resp)
	}
}

func TestIssueRejectsBadSubject(t *testing.T) {
	router := newTestRouter(t)

	w, resp := postJSON(t, router, "/api/v1/credentials", map[string]any{
		"subject_id":   "STU 001",
		"subject_type": "STUDENT",
		"tenant_id":    "school-1",
	})
	if w.Code != http.StatusBadRequest || resp.Success {
		t.Fatalf("status=%d resp=%+v", w.Code, resp)
	}
}

func TestOperatorVerifyExposesCodePublicScanDoesNot(t *testing.T) {
	router := newTestRouter(t)

	// Operator endpoint reports the exact failure.
	_, resp := postJSON(t, router, "/api/v1/credentials/verify", map[string]any{
		"encoded":   "not a credential",
		"tenant_id": "school-1",
	})
	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Message != fmt.Sprintf("verification failed: %s", models.CodeInvalidFormat) {
		t.Errorf("operator message = %q", resp.Message)
	}

	// Public endpoint collapses to a generic message with no code.
	w, resp := postJSON(t, router, "/api/v1/credentials/scan", map[string]any{
		"encoded":   "not a credential",
		"tenant_id": "school-1",
	})
	if w.Code != http.StatusOK || resp.Success {
		t.Fatalf("scan: status=%d resp=%+v", w.Code, resp)
	}
	if resp.Message != "verification failed" {
		t.Errorf("public message = %q", resp.Message)
	}
	if resp.Data != nil {
		t.Errorf("public failure leaked data: %v", resp.Data)
	}
}

func TestRevokeWithoutStoreIsUnavailable(t *testing.T) {
	router := newTestRouter(t)

	w, _ := postJSON(t, router, "/api/v1/credentials/cred-1/revoke", map[string]any{
		"reason": "card lost",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestBiometricUnsupportedPlatform(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/biometric/supported", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("supported probe: %d", w.Code)
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, _ := resp.Data.(map[string]any)
	if data["supported"] != false {
		t.Errorf("supported = %v, want false", data["supported"])
	}

	w2, resp := postJSON(t, router, "/api/v1/biometric/enroll", map[string]any{
		"subject_id":   "STU001",
		"subject_type": "STUDENT",
		"display_name": "Asha Mwangi",
	})
	if w2.Code != http.StatusNotImplemented {
		t.Errorf("enroll status = %d, want 501", w2.Code)
	}
	if resp.Success {
		t.Error("enroll succeeded on unsupported platform")
	}
}

func TestAdminSurface(t *testing.T) {
	router := newTestRouter(t)

	// Generate one audit record.
	postJSON(t, router, "/api/v1/credentials/verify", map[string]any{
		"encoded":   "garbage",
		"tenant_id": "school-1",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/records", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("audit records: %d", w.Code)
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	records, _ := resp.Data.([]any)
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}

	// CSV export sets its content type.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/audit/export?format=csv", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}

	// Device lifecycle.
	w2, resp := postJSON(t, router, "/api/v1/devices", map[string]any{
		"type":     "FINGERPRINT",
		"location": "Main Gate",
	})
	if w2.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("connect device: status=%d resp=%+v", w2.Code, resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	stats, _ := resp.Data.(map[string]any)
	if stats["devices_online"] != float64(1) {
		t.Errorf("devices_online = %v, want 1", stats["devices_online"])
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
