package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"credential-service/internal/models"

	"go.uber.org/zap"
)

type captureSink struct {
	mu      sync.Mutex
	written []models.AuditRecord
	err     error
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Write(_ context.Context, rec models.AuditRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.written = append(c.written, rec)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

func TestSinkReceivesRecordsAndCloseFlushes(t *testing.T) {
	log := NewLog(10, zap.NewNop())
	sink := &captureSink{}
	attachment := AttachSink(log, sink, 16, time.Second, zap.NewNop())

	for i := 0; i < 5; i++ {
		log.Record(testRecord("STU001"))
	}
	attachment.Close()

	if sink.count() != 5 {
		t.Errorf("sink received %d records, want 5", sink.count())
	}
}

func TestFailingSinkDoesNotBlockTheLog(t *testing.T) {
	log := NewLog(10, zap.NewNop())
	sink := &captureSink{err: errors.New("broker unavailable")}
	attachment := AttachSink(log, sink, 4, 10*time.Millisecond, zap.NewNop())
	defer attachment.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			log.Record(testRecord("STU001"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("record writes blocked on a failing sink")
	}
	if log.Len() != 10 {
		t.Errorf("retained = %d, want 10", log.Len())
	}
}

func TestDetachedSinkStopsReceiving(t *testing.T) {
	log := NewLog(10, zap.NewNop())
	sink := &captureSink{}
	attachment := AttachSink(log, sink, 16, time.Second, zap.NewNop())

	log.Record(testRecord("STU001"))
	attachment.Close()
	log.Record(testRecord("STU002"))

	if sink.count() != 1 {
		t.Errorf("sink received %d records, want 1", sink.count())
	}
}
