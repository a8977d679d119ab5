package bucketing

import (
	"hash"
	"sync"
	"time"

	"credential-service/internal/config"

	"github.com/spaolacci/murmur3"
)

// Manager assigns stable partition buckets for the Scylla archive and
// analytics tables. Subject buckets spread the audit archive across
// partitions; event buckets spread high-volume counters.
type Manager struct {
	subjectBuckets int
	eventBuckets   int
	hasherPool     sync.Pool
}

func NewManager(cfg config.BucketingConfig) *Manager {
	m := &Manager{
		subjectBuckets: cfg.SubjectBuckets,
		eventBuckets:   cfg.EventBuckets,
	}
	if m.subjectBuckets <= 0 {
		m.subjectBuckets = 64
	}
	if m.eventBuckets <= 0 {
		m.eventBuckets = 16
	}

	// Pooled hashers avoid per-call allocation on the audit hot path.
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return m
}

// SubjectBucket returns a consistent bucket in [0, subjectBuckets) for
// a subject id.
func (m *Manager) SubjectBucket(subjectID string) int {
	return m.bucket(subjectID, m.subjectBuckets)
}

// EventBucket returns a consistent bucket in [0, eventBuckets) for an
// arbitrary identifier.
func (m *Manager) EventBucket(identifier string) int {
	return m.bucket(identifier, m.eventBuckets)
}

// DateBucket returns the UTC day partition for a timestamp.
func (m *Manager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (m *Manager) bucket(id string, buckets int) int {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(id))
	return int(hasher.Sum64() % uint64(buckets))
}
