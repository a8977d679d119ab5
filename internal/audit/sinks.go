package audit

import (
	"context"
	"time"

	"credential-service/internal/models"

	"go.uber.org/zap"
)

// Sink is a durable destination for audit records: a Kafka topic, the
// ClickHouse analytics table, the Elasticsearch forensic index, or the
// Scylla archive. Sinks receive every record the log accepts.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec models.AuditRecord) error
}

// SinkAttachment decouples a sink from the log's synchronous fan-out: a
// bounded channel plus one drain goroutine per sink, so a slow or
// failing sink never blocks the writer or other subscribers. When the
// buffer fills, records are dropped for that sink (the in-memory feed
// and remaining sinks are unaffected) and the drop is logged.
type SinkAttachment struct {
	sink        Sink
	ch          chan models.AuditRecord
	unsubscribe func()
	done        chan struct{}
	timeout     time.Duration
	logger      *zap.Logger
}

// AttachSink subscribes a sink to the log. buffer bounds how many
// records may be queued before drops begin.
func AttachSink(log *Log, sink Sink, buffer int, timeout time.Duration, logger *zap.Logger) *SinkAttachment {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	a := &SinkAttachment{
		sink:    sink,
		ch:      make(chan models.AuditRecord, buffer),
		done:    make(chan struct{}),
		timeout: timeout,
		logger:  logger,
	}

	a.unsubscribe = log.Subscribe(func(rec models.AuditRecord) {
		select {
		case a.ch <- rec:
		default:
			logger.Warn("audit sink buffer full, dropping record",
				zap.String("sink", sink.Name()),
				zap.String("record_id", rec.ID),
			)
		}
	})

	go a.drain()
	return a
}

func (a *SinkAttachment) drain() {
	defer close(a.done)
	for rec := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.sink.Write(ctx, rec); err != nil {
			a.logger.Error("audit sink write failed",
				zap.String("sink", a.sink.Name()),
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close detaches from the log and flushes buffered records.
func (a *SinkAttachment) Close() {
	a.unsubscribe()
	close(a.ch)
	<-a.done
}
