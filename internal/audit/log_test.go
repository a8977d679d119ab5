package audit

import (
	"fmt"
	"testing"
	"time"

	"credential-service/internal/models"

	"go.uber.org/zap"
)

func testRecord(subjectID string) models.AuditRecord {
	return models.AuditRecord{
		Type:        models.RecordVerification,
		SubjectID:   subjectID,
		SubjectType: models.SubjectStudent,
		Status:      models.StatusSuccess,
		Message:     "verified",
	}
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	log := NewLog(10, zap.NewNop())

	stored := log.Record(testRecord("STU001"))
	if stored.ID == "" {
		t.Error("record has no id")
	}
	if stored.Timestamp.IsZero() {
		t.Error("record has no timestamp")
	}

	// Preset fields survive.
	preset := testRecord("STU002")
	preset.ID = "fixed-id"
	preset.Timestamp = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	stored = log.Record(preset)
	if stored.ID != "fixed-id" || !stored.Timestamp.Equal(preset.Timestamp) {
		t.Errorf("preset fields overwritten: %+v", stored)
	}
}

func TestRetentionBound(t *testing.T) {
	log := NewLog(3, zap.NewNop())

	for i := 0; i < 10; i++ {
		log.Record(testRecord(fmt.Sprintf("STU%03d", i)))
	}

	snap := log.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("retained = %d, want 3", len(snap))
	}
	// Oldest first, newest retained.
	for i, want := range []string{"STU007", "STU008", "STU009"} {
		if snap[i].SubjectID != want {
			t.Errorf("snap[%d] = %s, want %s", i, snap[i].SubjectID, want)
		}
	}
}

func TestSubscribersReceiveRecordsInOrder(t *testing.T) {
	log := NewLog(10, zap.NewNop())

	var seen []string
	unsubscribe := log.Subscribe(func(rec models.AuditRecord) {
		seen = append(seen, rec.SubjectID)
	})
	defer unsubscribe()

	for _, id := range []string{"a", "b", "c"} {
		log.Record(testRecord(id))
	}

	if len(seen) != 3 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Errorf("seen = %v", seen)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	log := NewLog(10, zap.NewNop())

	log.Subscribe(func(models.AuditRecord) {
		panic("broken dashboard widget")
	})
	var delivered int
	log.Subscribe(func(models.AuditRecord) {
		delivered++
	})

	log.Record(testRecord("STU001"))
	log.Record(testRecord("STU002"))

	if delivered != 2 {
		t.Errorf("second subscriber delivered = %d, want 2", delivered)
	}
	if log.Len() != 2 {
		t.Errorf("records retained = %d, want 2", log.Len())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	log := NewLog(10, zap.NewNop())

	var count int
	unsubscribe := log.Subscribe(func(models.AuditRecord) { count++ })

	log.Record(testRecord("STU001"))
	unsubscribe()
	unsubscribe()
	log.Record(testRecord("STU002"))

	if count != 1 {
		t.Errorf("deliveries = %d, want 1", count)
	}
}

func TestUnsubscribeFromInsideCallback(t *testing.T) {
	log := NewLog(10, zap.NewNop())

	var count int
	var unsubscribe func()
	unsubscribe = log.Subscribe(func(models.AuditRecord) {
		count++
		unsubscribe()
	})

	log.Record(testRecord("STU001"))
	log.Record(testRecord("STU002"))

	if count != 1 {
		t.Errorf("deliveries = %d, want 1", count)
	}
}

func TestClearKeepsSubscriptions(t *testing.T) {
	log := NewLog(10, zap.NewNop())

	var count int
	defer log.Subscribe(func(models.AuditRecord) { count++ })()

	log.Record(testRecord("STU001"))
	log.Clear()

	if log.Len() != 0 {
		t.Errorf("records after clear = %d", log.Len())
	}
	log.Record(testRecord("STU002"))
	if count != 2 {
		t.Errorf("deliveries = %d, want 2", count)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	log := NewLog(10, zap.NewNop())
	log.Record(testRecord("STU001"))

	snap := log.Snapshot()
	snap[0].SubjectID = "mutated"

	if log.Snapshot()[0].SubjectID != "STU001" {
		t.Error("snapshot mutation leaked into the log")
	}
}
