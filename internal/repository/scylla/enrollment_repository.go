package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"credential-service/internal/biometric"
	"credential-service/internal/models"
)

// EnrollmentRepository is the Scylla-backed biometric.EnrollmentStore.
// One row per subject; re-enrollment overwrites the row, matching the
// one-active-enrollment rule.
type EnrollmentRepository struct {
	client *ScyllaClient
	logger *zap.Logger
}

func NewEnrollmentRepository(client *ScyllaClient, logger *zap.Logger) *EnrollmentRepository {
	return &EnrollmentRepository{
		client: client,
		logger: logger,
	}
}

func (r *EnrollmentRepository) Get(ctx context.Context, subjectID string) (*models.BiometricEnrollment, error) {
	var e models.BiometricEnrollment
	var subjectType string

	err := r.client.Prepared.GetEnrollment.WithContext(ctx).Bind(subjectID).Scan(
		&e.SubjectID,
		&subjectType,
		&e.CredentialHandle,
		&e.DisplayName,
		&e.EnrolledAt,
		&e.LastVerifiedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, biometric.ErrNoEnrollment
		}
		return nil, fmt.Errorf("failed to read enrollment: %w", err)
	}

	e.SubjectType = models.SubjectType(subjectType)
	return &e, nil
}

func (r *EnrollmentRepository) Put(ctx context.Context, enrollment *models.BiometricEnrollment) error {
	err := r.client.Prepared.UpsertEnrollment.WithContext(ctx).Bind(
		enrollment.SubjectID,
		string(enrollment.SubjectType),
		enrollment.CredentialHandle,
		enrollment.DisplayName,
		enrollment.EnrolledAt,
		enrollment.LastVerifiedAt,
	).Exec()
	if err != nil {
		return fmt.Errorf("failed to store enrollment: %w", err)
	}
	return nil
}

func (r *EnrollmentRepository) Touch(ctx context.Context, subjectID string, verifiedAt time.Time) error {
	err := r.client.Prepared.TouchEnrollment.WithContext(ctx).Bind(verifiedAt, subjectID).Exec()
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	return nil
}
