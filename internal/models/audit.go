package models

import "time"

// RecordType classifies an audit record.
type RecordType string

const (
	RecordEnrollment    RecordType = "ENROLLMENT"
	RecordVerification  RecordType = "VERIFICATION"
	RecordAttendance    RecordType = "ATTENDANCE"
	RecordSecurityAlert RecordType = "SECURITY_ALERT"
)

// RecordStatus is the outcome carried by an audit record.
type RecordStatus string

const (
	StatusSuccess RecordStatus = "SUCCESS"
	StatusFailed  RecordStatus = "FAILED"
	StatusWarning RecordStatus = "WARNING"
)

// AuditMetadata carries optional context attached to a record.
// Confidence is a pointer so records without a score are excluded
// from confidence averages instead of dragging them toward zero.
type AuditMetadata struct {
	Confidence *int   `json:"confidence,omitempty"`
	Context    string `json:"context,omitempty"`
	Location   string `json:"location,omitempty"`
}

// AuditRecord is one immutable entry in the credential event feed.
// Records are append-only: they are never mutated or deleted
// individually, only bulk-cleared by an operator.
type AuditRecord struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Type        RecordType    `json:"type"`
	SubjectID   string        `json:"subject_id"`
	SubjectType SubjectType   `json:"subject_type"`
	Status      RecordStatus  `json:"status"`
	Message     string        `json:"message"`
	Metadata    AuditMetadata `json:"metadata,omitempty"`
}

// ConfidenceValue returns the attached confidence score, if any.
func (r *AuditRecord) ConfidenceValue() (int, bool) {
	if r.Metadata.Confidence == nil {
		return 0, false
	}
	return *r.Metadata.Confidence, true
}
