package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credential-service/internal/audit"
	"credential-service/internal/models"
	"credential-service/internal/qrcode"
	"credential-service/internal/util"

	"go.uber.org/zap"
)

var (
	ErrInvalidSubjectID = errors.New("invalid subject id")
	ErrInvalidTenantID  = errors.New("invalid tenant id")
	ErrRevocationStore  = errors.New("revocation store unavailable")
)

// Revoker is the write side of the revocation list.
type Revoker interface {
	Revoke(ctx context.Context, credentialID, reason string, ttl time.Duration) error
}

// IssuedCredential pairs a credential with its encoded QR string.
type IssuedCredential struct {
	Credential *models.QRCredential `json:"credential"`
	Encoded    string               `json:"encoded"`
}

// CredentialService fronts the codec and verifier for the HTTP layer:
// input validation, revocation writes, and logging live here so the
// codec stays a pure data transform.
type CredentialService struct {
	codec    *qrcode.Codec
	verifier *qrcode.Verifier
	revoker  Revoker
	recorder audit.Recorder
	logger   *zap.Logger

	defaultValidity time.Duration
}

func NewCredentialService(codec *qrcode.Codec, verifier *qrcode.Verifier, revoker Revoker, recorder audit.Recorder, defaultValidity time.Duration, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		codec:           codec,
		verifier:        verifier,
		revoker:         revoker,
		recorder:        recorder,
		defaultValidity: defaultValidity,
		logger:          logger,
	}
}

// Issue mints a new credential for a subject. The QR image itself is
// rendered by the caller from the encoded string.
func (s *CredentialService) Issue(ctx context.Context, subjectID string, subjectType models.SubjectType, tenantID string, validity time.Duration) (*IssuedCredential, error) {
	if !util.ValidSubjectID(subjectID) {
		return nil, ErrInvalidSubjectID
	}
	if !util.ValidSubjectID(tenantID) {
		return nil, ErrInvalidTenantID
	}

	encoded, cred, err := s.codec.Issue(subjectID, subjectType, tenantID, validity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	s.logger.Info("credential issued",
		zap.String("credential_id", cred.ID),
		zap.String("subject_id", subjectID),
		zap.String("tenant_id", tenantID),
		zap.Time("valid_until", cred.ValidUntil),
	)
	return &IssuedCredential{Credential: cred, Encoded: encoded}, nil
}

// Verify validates a scanned string against the verifying tenant.
func (s *CredentialService) Verify(ctx context.Context, encoded, verifyingTenantID string) models.VerificationResult {
	return s.verifier.Verify(ctx, encoded, verifyingTenantID, time.Now())
}

// Revoke invalidates a credential id before its natural expiry. The
// entry's lifetime is capped at the default validity since no
// credential outlives that anyway.
func (s *CredentialService) Revoke(ctx context.Context, credentialID, reason string) error {
	if credentialID == "" {
		return ErrInvalidSubjectID
	}
	if s.revoker == nil {
		return ErrRevocationStore
	}
	if reason == "" {
		reason = "revoked by operator"
	}

	if err := s.revoker.Revoke(ctx, credentialID, reason, s.defaultValidity); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationStore, err)
	}

	s.recorder.Record(models.AuditRecord{
		Type:    models.RecordSecurityAlert,
		Status:  models.StatusWarning,
		Message: fmt.Sprintf("credential %s revoked: %s", credentialID, reason),
	})
	return nil
}
