package client

import (
	"context"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"credential-service/internal/config"
	"credential-service/internal/models"
	"credential-service/internal/util"
)

// ClickHouseClient feeds the analytics warehouse: every audit record is
// mirrored into a columnar table that long-term dashboards and reports
// query without touching the live feed.
type ClickHouseClient struct {
	conn   driver.Conn
	config *config.ClickHouseConfig
}

func NewClickHouseClient(cfg *config.Config, logger *zap.Logger) (*ClickHouseClient, error) {
	chConfig := cfg.ClickHouse

	opts := &ch.Options{
		Addr: chConfig.Addr,
		Auth: ch.Auth{
			Username: chConfig.Username,
			Password: chConfig.Password,
			Database: chConfig.Database,
		},
		DialTimeout:      30 * time.Second,
		MaxOpenConns:     50,
		MaxIdleConns:     10,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: ch.ConnOpenInOrder,
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	util.Info("ClickHouse client initialized",
		zap.Strings("addr", chConfig.Addr),
		zap.String("database", chConfig.Database),
	)

	return &ClickHouseClient{
		conn:   conn,
		config: &chConfig,
	}, nil
}

// InsertAuditRecord appends one record to the analytics table.
func (c *ClickHouseClient) InsertAuditRecord(ctx context.Context, rec models.AuditRecord) error {
	confidence := int32(-1)
	if v, ok := rec.ConfidenceValue(); ok {
		confidence = int32(v)
	}
	return c.conn.Exec(ctx, `
		INSERT INTO audit_records
			(id, ts, record_type, subject_id, subject_type, status, message, confidence, context, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp,
		string(rec.Type),
		rec.SubjectID,
		string(rec.SubjectType),
		string(rec.Status),
		rec.Message,
		confidence,
		rec.Metadata.Context,
		rec.Metadata.Location,
	)
}

func (c *ClickHouseClient) HealthCheck(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping failed: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ClickHouseAuditSink adapts the client to the audit sink interface.
type ClickHouseAuditSink struct {
	client *ClickHouseClient
}

func NewClickHouseAuditSink(client *ClickHouseClient) *ClickHouseAuditSink {
	return &ClickHouseAuditSink{client: client}
}

func (s *ClickHouseAuditSink) Name() string { return "clickhouse" }

func (s *ClickHouseAuditSink) Write(ctx context.Context, rec models.AuditRecord) error {
	return s.client.InsertAuditRecord(ctx, rec)
}
