package biometric

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"credential-service/internal/audit"
	"credential-service/internal/config"
	"credential-service/internal/models"

	"go.uber.org/zap"
)

// Service bridges platform credential ceremonies to domain enroll and
// verify operations with uniform success/failure/confidence semantics.
//
// The per-subject state machine: a subject is unenrolled until a
// registration ceremony succeeds, then stays enrolled and re-verifiable
// indefinitely; re-enrollment replaces the stored handle. At most one
// ceremony per subject runs at a time; a concurrent second request is
// rejected with ALREADY_IN_PROGRESS rather than queued, so the caller
// always gets an immediate deterministic answer.
//
// The success confidence is a fixed normalization: the platform yields
// a binary pass, not a biometric match percentage, and this service
// does not pretend otherwise.
type Service struct {
	auth     Authenticator
	store    EnrollmentStore
	attempts AttemptTracker
	recorder audit.Recorder
	cfg      config.BiometricConfig
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a biometric service. attempts may be nil to
// disable the spoofing heuristic.
func NewService(auth Authenticator, store EnrollmentStore, attempts AttemptTracker, recorder audit.Recorder, cfg config.BiometricConfig, logger *zap.Logger) *Service {
	return &Service{
		auth:     auth,
		store:    store,
		attempts: attempts,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// IsSupported reports whether the platform can run ceremonies. Callers
// should probe this before offering enroll/verify at all.
func (s *Service) IsSupported() bool {
	return s.auth.Supported()
}

func (s *Service) acquire(subjectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[subjectID]; busy {
		return false
	}
	s.inFlight[subjectID] = struct{}{}
	return true
}

func (s *Service) release(subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, subjectID)
}

// Enroll runs a registration ceremony for the subject and persists the
// resulting credential handle. Failure or cancellation leaves no
// partial state.
func (s *Service) Enroll(ctx context.Context, subjectID string, subjectType models.SubjectType, displayName string) models.EnrollResult {
	if !s.auth.Supported() {
		s.record(models.RecordEnrollment, subjectID, subjectType, models.StatusFailed,
			"enrollment rejected: platform does not support biometric ceremonies", nil)
		return models.EnrollResult{Code: models.CodeUnsupportedPlatform, Error: "platform does not support biometric ceremonies"}
	}

	if !s.acquire(subjectID) {
		s.record(models.RecordEnrollment, subjectID, subjectType, models.StatusFailed,
			"enrollment rejected: another ceremony in progress for subject", nil)
		return models.EnrollResult{Code: models.CodeAlreadyInProgress, Error: "another ceremony is in progress for this subject"}
	}
	defer s.release(subjectID)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CeremonyTimeout)
	defer cancel()

	handle, err := s.auth.Register(ctx, subjectID, displayName)
	if err != nil {
		code, msg := s.ceremonyFailure(err)
		s.record(models.RecordEnrollment, subjectID, subjectType, models.StatusFailed,
			fmt.Sprintf("enrollment failed: %s", msg), nil)
		return models.EnrollResult{Code: code, Error: msg}
	}

	enrollment := &models.BiometricEnrollment{
		SubjectID:        subjectID,
		SubjectType:      subjectType,
		CredentialHandle: handle,
		DisplayName:      displayName,
		EnrolledAt:       time.Now(),
	}
	if err := s.store.Put(ctx, enrollment); err != nil {
		// The ceremony passed but the handle is unusable without
		// persistence, so the attempt still reads as a failure.
		s.logger.Error("failed to persist enrollment",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		s.record(models.RecordEnrollment, subjectID, subjectType, models.StatusFailed,
			"enrollment failed: could not persist credential handle", nil)
		return models.EnrollResult{Code: models.CodeCeremonyFailed, Error: "could not persist credential handle"}
	}

	s.record(models.RecordEnrollment, subjectID, subjectType, models.StatusSuccess,
		fmt.Sprintf("biometric enrollment completed for %s", subjectID), nil)
	return models.EnrollResult{Success: true, Code: models.CodeOK}
}

// Verify runs an assertion ceremony against the subject's stored
// credential handle.
func (s *Service) Verify(ctx context.Context, subjectID string) models.VerifyResult {
	enrollment, result := s.verify(ctx, subjectID)
	subjectType := models.SubjectType("")
	if enrollment != nil {
		subjectType = enrollment.SubjectType
	}
	s.auditVerify(subjectID, subjectType, result)
	return result
}

// verify performs the ceremony without audit side effects so that
// VerifyAndMarkAttendance can compose on top without double-recording.
func (s *Service) verify(ctx context.Context, subjectID string) (*models.BiometricEnrollment, models.VerifyResult) {
	if !s.auth.Supported() {
		return nil, models.VerifyResult{Code: models.CodeUnsupportedPlatform, Error: "platform does not support biometric ceremonies"}
	}

	if !s.acquire(subjectID) {
		return nil, models.VerifyResult{Code: models.CodeAlreadyInProgress, Error: "another ceremony is in progress for this subject"}
	}
	defer s.release(subjectID)

	enrollment, err := s.store.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNoEnrollment) {
			return nil, models.VerifyResult{Code: models.CodeNoEnrollment, Error: "subject has no biometric enrollment"}
		}
		s.logger.Error("enrollment lookup failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return nil, models.VerifyResult{Code: models.CodeCeremonyFailed, Error: "enrollment store unavailable"}
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CeremonyTimeout)
	defer cancel()

	if err := s.auth.Assert(cctx, subjectID, enrollment.CredentialHandle); err != nil {
		code, msg := s.ceremonyFailure(err)
		return enrollment, models.VerifyResult{Code: code, Error: msg}
	}

	if err := s.store.Touch(ctx, subjectID, time.Now()); err != nil {
		s.logger.Warn("failed to update last verification time",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}

	return enrollment, models.VerifyResult{Success: true, Code: models.CodeOK, Confidence: s.cfg.Confidence}
}

// VerifyAndMarkAttendance composes a verification with an attendance
// record. Verification runs exactly once; attendance is only marked on
// success.
func (s *Service) VerifyAndMarkAttendance(ctx context.Context, subjectID string, subjectType models.SubjectType, attendanceContext string) models.VerifyResult {
	enrollment, result := s.verify(ctx, subjectID)
	if enrollment != nil && enrollment.SubjectType != "" {
		subjectType = enrollment.SubjectType
	}
	s.auditVerify(subjectID, subjectType, result)

	if result.Success {
		confidence := result.Confidence
		s.record(models.RecordAttendance, subjectID, subjectType, models.StatusSuccess,
			fmt.Sprintf("attendance marked via biometric verification (%s)", attendanceContext),
			&models.AuditMetadata{Confidence: &confidence, Context: attendanceContext})
	}
	return result
}

// auditVerify emits the VERIFICATION record for a verify outcome and,
// when rapid repeated failures suggest a spoofing attempt, a
// SECURITY_ALERT on top.
func (s *Service) auditVerify(subjectID string, subjectType models.SubjectType, result models.VerifyResult) {
	if result.Success {
		confidence := result.Confidence
		s.record(models.RecordVerification, subjectID, subjectType, models.StatusSuccess,
			fmt.Sprintf("biometric verification passed for %s", subjectID),
			&models.AuditMetadata{Confidence: &confidence})
		return
	}

	s.record(models.RecordVerification, subjectID, subjectType, models.StatusFailed,
		fmt.Sprintf("biometric verification failed: %s (%s)", result.Code, result.Error), nil)

	// Capability rejections and concurrency rejections are not
	// authentication failures; only real ceremony rejections feed the
	// spoofing heuristic.
	if s.attempts == nil {
		return
	}
	if result.Code != models.CodeCeremonyFailed && result.Code != models.CodeUserCancelled {
		return
	}

	count, err := s.attempts.RecordFailure(context.Background(), subjectID)
	if err != nil {
		s.logger.Warn("failure counter unavailable", zap.Error(err))
		return
	}
	if count >= s.cfg.SpoofThreshold {
		s.record(models.RecordSecurityAlert, subjectID, subjectType, models.StatusWarning,
			fmt.Sprintf("%d failed biometric verifications within %s for subject %s", count, s.cfg.SpoofWindow, subjectID), nil)
	}
}

func (s *Service) record(recType models.RecordType, subjectID string, subjectType models.SubjectType, status models.RecordStatus, message string, meta *models.AuditMetadata) {
	rec := models.AuditRecord{
		Type:        recType,
		SubjectID:   subjectID,
		SubjectType: subjectType,
		Status:      status,
		Message:     message,
	}
	if meta != nil {
		rec.Metadata = *meta
	}
	s.recorder.Record(rec)
}

// ceremonyFailure normalizes an authenticator error to the typed code
// the caller can act on. A raw platform error never crosses this
// boundary.
func (s *Service) ceremonyFailure(err error) (models.VerificationCode, string) {
	switch {
	case errors.Is(err, ErrUserCancelled):
		return models.CodeUserCancelled, "user cancelled the ceremony"
	case errors.Is(err, context.DeadlineExceeded):
		return models.CodeCeremonyFailed, "ceremony timed out"
	default:
		return models.CodeCeremonyFailed, "authenticator rejected the ceremony"
	}
}
