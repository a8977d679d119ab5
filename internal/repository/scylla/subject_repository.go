package scylla

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"credential-service/internal/directory"
	"credential-service/internal/models"
)

// SubjectRepository is the Scylla-backed subject directory. The app's
// enrollment pipeline keeps the subjects table in sync with the school
// information system; the verifier only ever reads from it.
type SubjectRepository struct {
	client *ScyllaClient
	logger *zap.Logger
}

func NewSubjectRepository(client *ScyllaClient, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		client: client,
		logger: logger,
	}
}

func (r *SubjectRepository) Lookup(ctx context.Context, subjectID string) (*directory.Subject, error) {
	var s directory.Subject
	var subjectType string

	err := r.client.Prepared.GetSubject.WithContext(ctx).Bind(subjectID).Scan(
		&s.ID,
		&subjectType,
		&s.DisplayName,
		&s.ClassOrDepartment,
		&s.TenantID,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, directory.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to read subject: %w", err)
	}

	s.Type = models.SubjectType(subjectType)
	return &s, nil
}

// Upsert writes a subject row; used by the sync job that mirrors the
// school information system.
func (r *SubjectRepository) Upsert(ctx context.Context, s *directory.Subject) error {
	err := r.client.Prepared.UpsertSubject.WithContext(ctx).Bind(
		s.ID,
		string(s.Type),
		s.DisplayName,
		s.ClassOrDepartment,
		s.TenantID,
	).Exec()
	if err != nil {
		return fmt.Errorf("failed to store subject: %w", err)
	}
	return nil
}
