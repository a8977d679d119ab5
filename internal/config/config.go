package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment
// variables (optionally seeded from a .env file in development).
type Config struct {
	Environment string

	Server        ServerConfig
	Security      SecurityConfig
	Biometric     BiometricConfig
	Audit         AuditConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	ClickHouse    ClickHouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	Bucketing     BucketingConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SecurityConfig carries the credential integrity secret. The secret
// signs every issued QR payload; it must never ship in client code.
type SecurityConfig struct {
	// IntegritySecret is the raw HMAC key, or the base64 KMS
	// ciphertext of it when KMS is enabled.
	IntegritySecret string
	Namespace       string
	DefaultValidity time.Duration
}

type BiometricConfig struct {
	CeremonyTimeout time.Duration
	// SpoofThreshold failed verifications within SpoofWindow for one
	// subject raise a SECURITY_ALERT.
	SpoofThreshold int
	SpoofWindow    time.Duration
	Confidence     int
}

type AuditConfig struct {
	RetainRecords int
	KafkaTopic    string
	ESIndex       string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

type ClickHouseConfig struct {
	Addr     []string
	Database string
	Username string
	Password string
	Enabled  bool
}

type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	Enabled  bool
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type BucketingConfig struct {
	SubjectBuckets int
	EventBuckets   int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads configuration from the environment. It returns an
// error instead of exiting so the caller can log through the normal
// path before giving up.
func LoadConfig() (*Config, error) {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       getEnv("SERVER_DOMAIN", "localhost"),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/lib/credential-service/certs"),
			Email:        getEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Security: SecurityConfig{
			IntegritySecret: getEnv("CREDENTIAL_INTEGRITY_SECRET", ""),
			Namespace:       getEnv("CREDENTIAL_NAMESPACE", "MASOMO"),
			DefaultValidity: getEnvDuration("CREDENTIAL_DEFAULT_VALIDITY", 365*24*time.Hour),
		},
		Biometric: BiometricConfig{
			CeremonyTimeout: getEnvDuration("BIOMETRIC_CEREMONY_TIMEOUT", 60*time.Second),
			SpoofThreshold:  getEnvInt("BIOMETRIC_SPOOF_THRESHOLD", 3),
			SpoofWindow:     getEnvDuration("BIOMETRIC_SPOOF_WINDOW", time.Minute),
			Confidence:      getEnvInt("BIOMETRIC_CONFIDENCE", 95),
		},
		Audit: AuditConfig{
			RetainRecords: getEnvInt("AUDIT_RETAIN_RECORDS", 50),
			KafkaTopic:    getEnv("AUDIT_KAFKA_TOPIC", "credential-audit"),
			ESIndex:       getEnv("AUDIT_ES_INDEX", "credential-audit"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    getEnvList("SCYLLA_NODES", "localhost:9042"),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "credentials"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", "localhost:9092"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnvList("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("CLICKHOUSE_DATABASE", "credential_analytics"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", true),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:      getEnv("ELASTICSEARCH_URL", "https://localhost:9200"),
			Username: getEnv("ELASTICSEARCH_USERNAME", ""),
			Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
			Enabled:  getEnvBool("ELASTICSEARCH_ENABLED", true),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("KMS_REGION", "us-east-1"),
		},
		Bucketing: BucketingConfig{
			SubjectBuckets: getEnvInt("BUCKETING_SUBJECT_BUCKETS", 64),
			EventBuckets:   getEnvInt("BUCKETING_EVENT_BUCKETS", 16),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces invariants that must hold before any client is
// initialized. The integrity secret has no production fallback: a
// hardcoded default would let anyone who reads the binary forge
// credentials, so startup fails instead.
func (c *Config) validate() error {
	if c.IsProduction() && c.Security.IntegritySecret == "" {
		return fmt.Errorf("CREDENTIAL_INTEGRITY_SECRET is required in production")
	}
	if c.Security.Namespace == "" {
		return fmt.Errorf("CREDENTIAL_NAMESPACE must not be empty")
	}
	if c.Security.DefaultValidity <= 0 {
		return fmt.Errorf("CREDENTIAL_DEFAULT_VALIDITY must be positive")
	}
	if c.Audit.RetainRecords <= 0 {
		return fmt.Errorf("AUDIT_RETAIN_RECORDS must be positive")
	}
	if c.Biometric.Confidence < 0 || c.Biometric.Confidence > 100 {
		return fmt.Errorf("BIOMETRIC_CONFIDENCE must be between 0 and 100")
	}
	if c.KMS.Enabled && c.KMS.KeyID == "" {
		return fmt.Errorf("KMS_KEY_ID is required when KMS_ENABLED=true")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
