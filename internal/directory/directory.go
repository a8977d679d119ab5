package directory

import (
	"context"
	"errors"
	"sync"

	"credential-service/internal/models"
)

var ErrSubjectNotFound = errors.New("subject not found")

// Subject is the directory's view of a student or staff member.
type Subject struct {
	ID                string             `json:"id"`
	Type              models.SubjectType `json:"type"`
	DisplayName       string             `json:"display_name"`
	ClassOrDepartment string             `json:"class_or_department"`
	TenantID          string             `json:"tenant_id"`
}

// Directory resolves subject ids to display identity. The production
// implementation sits over the school's student/staff store; tests and
// development deployments use the static variant below.
type Directory interface {
	Lookup(ctx context.Context, subjectID string) (*Subject, error)
}

// StaticDirectory is an in-memory Directory, safe for concurrent use.
type StaticDirectory struct {
	mu       sync.RWMutex
	subjects map[string]Subject
}

func NewStaticDirectory(subjects ...Subject) *StaticDirectory {
	d := &StaticDirectory{subjects: make(map[string]Subject, len(subjects))}
	for _, s := range subjects {
		d.subjects[s.ID] = s
	}
	return d
}

func (d *StaticDirectory) Add(s Subject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects[s.ID] = s
}

func (d *StaticDirectory) Lookup(_ context.Context, subjectID string) (*Subject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.subjects[subjectID]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	return &s, nil
}
