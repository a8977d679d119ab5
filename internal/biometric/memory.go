package biometric

import (
	"context"
	"sync"
	"time"

	"credential-service/internal/models"
)

// MemoryStore is an in-process EnrollmentStore for development
// deployments and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	enrollments map[string]models.BiometricEnrollment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{enrollments: make(map[string]models.BiometricEnrollment)}
}

func (m *MemoryStore) Get(_ context.Context, subjectID string) (*models.BiometricEnrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[subjectID]
	if !ok {
		return nil, ErrNoEnrollment
	}
	return &e, nil
}

func (m *MemoryStore) Put(_ context.Context, enrollment *models.BiometricEnrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollment.SubjectID] = *enrollment
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, subjectID string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[subjectID]
	if !ok {
		return ErrNoEnrollment
	}
	e.LastVerifiedAt = verifiedAt
	m.enrollments[subjectID] = e
	return nil
}

// MemoryAttempts is an in-process AttemptTracker with a sliding window.
type MemoryAttempts struct {
	window time.Duration

	mu       sync.Mutex
	failures map[string][]time.Time
}

func NewMemoryAttempts(window time.Duration) *MemoryAttempts {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryAttempts{
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

func (m *MemoryAttempts) RecordFailure(_ context.Context, subjectID string) (int, error) {
	now := time.Now()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.failures[subjectID][:0]
	for _, t := range m.failures[subjectID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	m.failures[subjectID] = kept
	return len(kept), nil
}
