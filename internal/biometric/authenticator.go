package biometric

import (
	"context"
	"errors"
	"time"

	"credential-service/internal/models"
)

var (
	// ErrCeremonyFailed means the authenticator rejected or timed out.
	ErrCeremonyFailed = errors.New("authenticator ceremony failed")
	// ErrUserCancelled means the user abandoned the ceremony.
	ErrUserCancelled = errors.New("user cancelled ceremony")
	// ErrNoEnrollment means no credential handle exists for the subject.
	ErrNoEnrollment = errors.New("subject has no biometric enrollment")
)

// Authenticator abstracts the platform public-key-credential API
// (a WebAuthn-style register/assert bridge). The service treats it as
// opaque: biometric material never reaches this process, only an
// opaque credential handle and pass/fail outcomes. Implementations
// must honor ctx cancellation; a deadline expiry is reported as
// ErrCeremonyFailed by the service.
type Authenticator interface {
	// Supported reports whether the calling environment can run a
	// ceremony at all.
	Supported() bool
	// Register runs a registration ceremony scoped to the subject and
	// returns the resulting credential handle.
	Register(ctx context.Context, subjectID, displayName string) ([]byte, error)
	// Assert runs an assertion ceremony against a stored handle.
	Assert(ctx context.Context, subjectID string, handle []byte) error
}

// UnavailableAuthenticator is wired when no platform bridge is
// configured. Supported() is false, so every enroll/verify call
// short-circuits without attempting a ceremony.
type UnavailableAuthenticator struct{}

func (UnavailableAuthenticator) Supported() bool { return false }

func (UnavailableAuthenticator) Register(context.Context, string, string) ([]byte, error) {
	return nil, ErrCeremonyFailed
}

func (UnavailableAuthenticator) Assert(context.Context, string, []byte) error {
	return ErrCeremonyFailed
}

// EnrollmentStore persists credential handles keyed by subject. Put
// replaces any previous handle: one active enrollment per subject.
type EnrollmentStore interface {
	Get(ctx context.Context, subjectID string) (*models.BiometricEnrollment, error)
	Put(ctx context.Context, enrollment *models.BiometricEnrollment) error
	Touch(ctx context.Context, subjectID string, verifiedAt time.Time) error
}

// AttemptTracker counts recent verification failures per subject for
// the spoofing heuristic. RecordFailure returns the failure count
// within the configured window, including the one just recorded.
type AttemptTracker interface {
	RecordFailure(ctx context.Context, subjectID string) (int, error)
}
