package scylla

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"credential-service/internal/bucketing"
	"credential-service/internal/models"
)

// AuditArchive persists the full audit history the in-memory feed ages
// out. Rows are partitioned by (subject bucket, day) so per-subject
// forensic reads stay on one partition while writes spread evenly.
// It implements the audit sink interface.
type AuditArchive struct {
	client  *ScyllaClient
	buckets *bucketing.Manager
	logger  *zap.Logger
}

func NewAuditArchive(client *ScyllaClient, buckets *bucketing.Manager, logger *zap.Logger) *AuditArchive {
	return &AuditArchive{
		client:  client,
		buckets: buckets,
		logger:  logger,
	}
}

func (a *AuditArchive) Name() string { return "scylla-archive" }

func (a *AuditArchive) Write(ctx context.Context, rec models.AuditRecord) error {
	confidence := -1
	if v, ok := rec.ConfidenceValue(); ok {
		confidence = v
	}

	err := a.client.Prepared.InsertArchiveRecord.WithContext(ctx).Bind(
		a.buckets.SubjectBucket(rec.SubjectID),
		a.buckets.DateBucket(rec.Timestamp),
		rec.Timestamp,
		rec.ID,
		string(rec.Type),
		rec.SubjectID,
		string(rec.SubjectType),
		string(rec.Status),
		rec.Message,
		confidence,
		rec.Metadata.Context,
		rec.Metadata.Location,
	).Exec()
	if err != nil {
		return fmt.Errorf("failed to archive audit record: %w", err)
	}
	return nil
}

// RecordsForSubjectDay reads archived records for one subject bucket
// and day partition; callers filter by subject id client-side.
func (a *AuditArchive) RecordsForSubjectDay(ctx context.Context, subjectID, date string) ([]models.AuditRecord, error) {
	iter := a.client.Prepared.GetArchiveBySubject.WithContext(ctx).Bind(
		a.buckets.SubjectBucket(subjectID),
		date,
	).Iter()

	var out []models.AuditRecord
	var rec models.AuditRecord
	var recordType, subjectType, status string
	var confidence int

	for iter.Scan(&rec.ID, &rec.Timestamp, &recordType, &rec.SubjectID, &subjectType, &status, &rec.Message, &confidence, &rec.Metadata.Context, &rec.Metadata.Location) {
		rec.Type = models.RecordType(recordType)
		rec.SubjectType = models.SubjectType(subjectType)
		rec.Status = models.RecordStatus(status)
		if confidence >= 0 {
			v := confidence
			rec.Metadata.Confidence = &v
		} else {
			rec.Metadata.Confidence = nil
		}
		if rec.SubjectID == subjectID {
			out = append(out, rec)
		}
		rec = models.AuditRecord{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read audit archive: %w", err)
	}
	return out, nil
}
