package models

import "time"

// SubjectType identifies which directory a credential subject belongs to.
type SubjectType string

const (
	SubjectStudent SubjectType = "STUDENT"
	SubjectStaff   SubjectType = "STAFF"
)

// Valid reports whether t is one of the known subject types.
func (t SubjectType) Valid() bool {
	return t == SubjectStudent || t == SubjectStaff
}

// QRCredential is the payload embedded in an identity-card QR image.
// It is immutable once issued: re-issuing produces a new ID, it never
// mutates an existing credential. The integrity tag is a keyed digest
// over the remaining fields, so any alteration invalidates it.
type QRCredential struct {
	ID           string      `json:"id"`
	SubjectID    string      `json:"userId"`
	SubjectType  SubjectType `json:"userType"`
	TenantID     string      `json:"schoolId"`
	ValidUntil   time.Time   `json:"validUntil"`
	IntegrityTag string      `json:"hash"`
}

// Expired reports whether the credential's validity window has passed.
func (c *QRCredential) Expired(now time.Time) bool {
	return !c.ValidUntil.After(now)
}

// VerificationCode is the typed outcome of a credential or biometric check.
type VerificationCode string

const (
	CodeOK VerificationCode = "OK"

	// Decode failures.
	CodeInvalidFormat    VerificationCode = "INVALID_FORMAT"
	CodeMalformedPayload VerificationCode = "MALFORMED_PAYLOAD"
	CodeMissingField     VerificationCode = "MISSING_FIELD"

	// Credential verification failures.
	CodeTampered        VerificationCode = "TAMPERED"
	CodeExpired         VerificationCode = "EXPIRED"
	CodeWrongTenant     VerificationCode = "WRONG_TENANT"
	CodeRevoked         VerificationCode = "REVOKED"
	CodeSubjectNotFound VerificationCode = "SUBJECT_NOT_FOUND"

	// Biometric failures.
	CodeUnsupportedPlatform VerificationCode = "UNSUPPORTED_PLATFORM"
	CodeNoEnrollment        VerificationCode = "NO_ENROLLMENT"
	CodeCeremonyFailed      VerificationCode = "CEREMONY_FAILED"
	CodeUserCancelled       VerificationCode = "USER_CANCELLED"
	CodeAlreadyInProgress   VerificationCode = "ALREADY_IN_PROGRESS"
)

// VerificationResult is the discriminated outcome returned by the QR
// verifier. Confidence is 100 on success: a cryptographically valid,
// unexpired, correctly scoped credential is a binary yes, there is no
// partial match to grade.
type VerificationResult struct {
	Success     bool             `json:"success"`
	Code        VerificationCode `json:"code"`
	SubjectID   string           `json:"subject_id,omitempty"`
	SubjectType SubjectType      `json:"subject_type,omitempty"`
	DisplayName string           `json:"display_name,omitempty"`
	Confidence  int              `json:"confidence"`
}
