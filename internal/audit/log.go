package audit

import (
	"sync"
	"sync/atomic"
	"time"

	"credential-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder is the write side of the audit feed. The credential and
// biometric services depend on this interface so tests can capture
// emitted records without a full log.
type Recorder interface {
	Record(rec models.AuditRecord) models.AuditRecord
}

type subscriber struct {
	id        uint64
	fn        func(models.AuditRecord)
	cancelled atomic.Bool
}

// Log is the append-only, bounded credential event feed. It retains the
// most recent N records for the live dashboard; long-term history goes
// through attached sinks. All methods are safe for concurrent use.
//
// Fan-out is synchronous and ordered: delivery of record k to every
// subscriber completes before record k+1 is delivered. Subscriber
// callbacks therefore must not call Record themselves.
type Log struct {
	// deliverMu serializes append+fanout so subscribers observe
	// records in insertion order even under concurrent writers.
	deliverMu sync.Mutex

	mu          sync.RWMutex
	records     []models.AuditRecord
	subscribers []*subscriber
	nextSubID   uint64
	retain      int

	logger *zap.Logger
}

// NewLog creates a log retaining the most recent retain records.
func NewLog(retain int, logger *zap.Logger) *Log {
	if retain <= 0 {
		retain = 50
	}
	return &Log{
		retain: retain,
		logger: logger,
	}
}

// Record assigns an id and timestamp if absent, appends the record, and
// notifies all current subscribers in order. It returns the stored
// record. A panicking subscriber is isolated: the panic is logged and
// delivery continues with the next subscriber.
func (l *Log) Record(rec models.AuditRecord) models.AuditRecord {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	l.records = append(l.records, rec)
	if len(l.records) > l.retain {
		l.records = l.records[len(l.records)-l.retain:]
	}
	subs := make([]*subscriber, len(l.subscribers))
	copy(subs, l.subscribers)
	l.mu.Unlock()

	for _, sub := range subs {
		if sub.cancelled.Load() {
			continue
		}
		l.notify(sub, rec)
	}
	return rec
}

func (l *Log) notify(sub *subscriber, rec models.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("audit subscriber panicked",
				zap.Uint64("subscriber_id", sub.id),
				zap.String("record_id", rec.ID),
				zap.Any("panic", r),
			)
		}
	}()
	sub.fn(rec)
}

// Subscribe registers a callback invoked once per new record, in
// insertion order. The returned function cancels the subscription; it
// is idempotent and safe to call from inside the callback itself.
func (l *Log) Subscribe(fn func(models.AuditRecord)) func() {
	l.mu.Lock()
	l.nextSubID++
	sub := &subscriber{id: l.nextSubID, fn: fn}
	l.subscribers = append(l.subscribers, sub)
	l.mu.Unlock()

	return func() {
		if sub.cancelled.Swap(true) {
			return
		}
		l.mu.Lock()
		for i, s := range l.subscribers {
			if s == sub {
				l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
	}
}

// Clear empties the retained records. Past deliveries to subscribers
// are not affected.
func (l *Log) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}

// Snapshot returns a copy of the retained records, oldest first.
func (l *Log) Snapshot() []models.AuditRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.AuditRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
