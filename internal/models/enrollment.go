package models

import "time"

// BiometricEnrollment ties a subject to an opaque platform credential
// handle. The handle references a public-key credential held by the
// authenticator; no biometric material ever reaches this service.
// Re-enrollment replaces the handle, so at most one enrollment per
// subject is usable for verification.
type BiometricEnrollment struct {
	SubjectID        string      `json:"subject_id" db:"subject_id"`
	SubjectType      SubjectType `json:"subject_type" db:"subject_type"`
	CredentialHandle []byte      `json:"-" db:"credential_handle"`
	DisplayName      string      `json:"display_name" db:"display_name"`
	EnrolledAt       time.Time   `json:"enrolled_at" db:"enrolled_at"`
	LastVerifiedAt   time.Time   `json:"last_verified_at" db:"last_verified_at"`
}

// EnrollResult is the discriminated outcome of an enrollment attempt.
type EnrollResult struct {
	Success bool             `json:"success"`
	Code    VerificationCode `json:"code"`
	Error   string           `json:"error,omitempty"`
}

// VerifyResult is the discriminated outcome of a biometric verification.
// Confidence is a fixed normalization of the platform's binary pass,
// not a real biometric match score.
type VerifyResult struct {
	Success    bool             `json:"success"`
	Code       VerificationCode `json:"code"`
	Confidence int              `json:"confidence"`
	Error      string           `json:"error,omitempty"`
}
