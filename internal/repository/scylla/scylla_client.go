package scylla

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"credential-service/internal/config"
	"credential-service/internal/util"
)

// PreparedStatements holds the statements the repositories actually use.
type PreparedStatements struct {
	UpsertEnrollment    *gocql.Query
	GetEnrollment       *gocql.Query
	TouchEnrollment     *gocql.Query
	GetSubject          *gocql.Query
	UpsertSubject       *gocql.Query
	InsertArchiveRecord *gocql.Query
	GetArchiveBySubject *gocql.Query
}

// ScyllaClient owns the session backing the enrollment store, the
// subject directory, and the audit archive.
type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.Mutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 "/root/certs/ca.pem",
			CertPath:               "/root/certs/server.pem",
			KeyPath:                "/root/certs/server.key",
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}
	client.prepareStatements()

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return
	}

	prepared := &PreparedStatements{}

	prepared.UpsertEnrollment = s.Session.Query(`
		INSERT INTO biometric_enrollments
			(subject_id, subject_type, credential_handle, display_name, enrolled_at, last_verified_at)
		VALUES (?, ?, ?, ?, ?, ?)`)

	prepared.GetEnrollment = s.Session.Query(`
		SELECT subject_id, subject_type, credential_handle, display_name, enrolled_at, last_verified_at
		FROM biometric_enrollments WHERE subject_id = ?`)

	prepared.TouchEnrollment = s.Session.Query(`
		UPDATE biometric_enrollments SET last_verified_at = ? WHERE subject_id = ?`)

	prepared.GetSubject = s.Session.Query(`
		SELECT subject_id, subject_type, display_name, class_or_department, tenant_id
		FROM subjects WHERE subject_id = ?`)

	prepared.UpsertSubject = s.Session.Query(`
		INSERT INTO subjects
			(subject_id, subject_type, display_name, class_or_department, tenant_id)
		VALUES (?, ?, ?, ?, ?)`)

	prepared.InsertArchiveRecord = s.Session.Query(`
		INSERT INTO audit_archive
			(subject_bucket, event_date, event_time, record_id, record_type, subject_id, subject_type, status, message, confidence, context, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetArchiveBySubject = s.Session.Query(`
		SELECT record_id, event_time, record_type, subject_id, subject_type, status, message, confidence, context, location
		FROM audit_archive WHERE subject_bucket = ? AND event_date = ?`)

	s.Prepared = prepared
	s.isPrepared = true
}

func (s *ScyllaClient) HealthCheck() error {
	if s.Session == nil || s.Session.Closed() {
		return fmt.Errorf("scylla session is closed")
	}
	return s.Session.Query("SELECT release_version FROM system.local").Exec()
}

func (s *ScyllaClient) Close() {
	if s.Session != nil && !s.Session.Closed() {
		s.Session.Close()
	}
}
