package qrcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credential-service/internal/audit"
	"credential-service/internal/directory"
	"credential-service/internal/models"

	"go.uber.org/zap"
)

// RevocationChecker answers whether a credential id has been revoked
// before its natural expiry (lost or withdrawn cards). The production
// implementation is a Redis lookup.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}

// Verifier decides whether a scanned string is a currently valid,
// untampered credential for a known subject. Checks run in a fixed
// order and short-circuit on the first failure, each with a distinct
// code so operators see the exact reason. Every outcome, success or
// failure, lands in the audit feed.
type Verifier struct {
	codec       *Codec
	directory   directory.Directory
	revocations RevocationChecker
	recorder    audit.Recorder
	logger      *zap.Logger
}

// NewVerifier creates a verifier. revocations may be nil, in which case
// the revocation step is skipped.
func NewVerifier(codec *Codec, dir directory.Directory, revocations RevocationChecker, recorder audit.Recorder, logger *zap.Logger) *Verifier {
	return &Verifier{
		codec:       codec,
		directory:   dir,
		revocations: revocations,
		recorder:    recorder,
		logger:      logger,
	}
}

// Verify validates encoded against the verifying tenant at the given
// instant. now is explicit so expiry boundaries are testable.
func (v *Verifier) Verify(ctx context.Context, encoded, verifyingTenantID string, now time.Time) models.VerificationResult {
	cred, err := v.codec.Decode(encoded)
	if err != nil {
		return v.fail(decodeCode(err), nil, err.Error())
	}

	if !v.codec.TagMatches(cred) {
		return v.fail(models.CodeTampered, cred, "integrity tag mismatch")
	}

	if cred.Expired(now) {
		return v.fail(models.CodeExpired, cred, fmt.Sprintf("credential expired at %s", cred.ValidUntil.Format(time.RFC3339)))
	}

	if cred.TenantID != verifyingTenantID {
		return v.fail(models.CodeWrongTenant, cred, "credential issued by a different tenant")
	}

	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, cred.ID)
		if err != nil {
			// Revocation is an availability/security trade-off: the
			// store being down must not turn every card away, so the
			// check fails open and the outage is logged.
			v.logger.Warn("revocation check unavailable, continuing",
				zap.String("credential_id", cred.ID),
				zap.Error(err),
			)
		} else if revoked {
			return v.fail(models.CodeRevoked, cred, "credential has been revoked")
		}
	}

	subject, err := v.directory.Lookup(ctx, cred.SubjectID)
	if err != nil {
		// Any directory failure resolves to the typed not-found code;
		// raw lookup errors never surface to the caller.
		if !errors.Is(err, directory.ErrSubjectNotFound) {
			v.logger.Error("subject directory lookup failed",
				zap.String("subject_id", cred.SubjectID),
				zap.Error(err),
			)
		}
		return v.fail(models.CodeSubjectNotFound, cred, "subject not found in directory")
	}

	result := models.VerificationResult{
		Success:     true,
		Code:        models.CodeOK,
		SubjectID:   cred.SubjectID,
		SubjectType: cred.SubjectType,
		DisplayName: subject.DisplayName,
		Confidence:  100,
	}

	confidence := result.Confidence
	v.recorder.Record(models.AuditRecord{
		Type:        models.RecordVerification,
		SubjectID:   cred.SubjectID,
		SubjectType: cred.SubjectType,
		Status:      models.StatusSuccess,
		Message:     fmt.Sprintf("QR credential verified for %s", subject.DisplayName),
		Metadata: models.AuditMetadata{
			Confidence: &confidence,
			Context:    subject.ClassOrDepartment,
		},
	})
	return result
}

func (v *Verifier) fail(code models.VerificationCode, cred *models.QRCredential, detail string) models.VerificationResult {
	rec := models.AuditRecord{
		Type:    models.RecordVerification,
		Status:  models.StatusFailed,
		Message: fmt.Sprintf("QR verification failed: %s (%s)", code, detail),
	}
	if cred != nil {
		rec.SubjectID = cred.SubjectID
		rec.SubjectType = cred.SubjectType
	}
	v.recorder.Record(rec)

	// Decoded identity stays off the failure result: an
	// attacker-supplied payload is not a verified identity.
	return models.VerificationResult{Code: code}
}

func decodeCode(err error) models.VerificationCode {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return models.CodeInvalidFormat
	case errors.Is(err, ErrMissingField):
		return models.CodeMissingField
	default:
		return models.CodeMalformedPayload
	}
}
