package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	appconfig "credential-service/internal/config"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"
)

var ErrNoSecret = errors.New("no integrity secret configured")

// kmsDecrypter is the slice of the KMS client the manager needs;
// narrowed for tests.
type kmsDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Manager resolves the credential integrity secret. In production the
// environment carries either the raw key or, with KMS enabled, the
// base64 ciphertext of it, decrypted once at startup. Development
// deployments without a configured secret get a random per-process key
// so the insecure path is loud: credentials stop verifying across
// restarts and the log says why.
type Manager struct {
	cfg    *appconfig.Config
	kms    kmsDecrypter
	logger *zap.Logger

	secret []byte
}

func NewManager(ctx context.Context, cfg *appconfig.Config, logger *zap.Logger) (*Manager, error) {
	m := &Manager{cfg: cfg, logger: logger}

	if cfg.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.KMS.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		m.kms = kms.NewFromConfig(awsCfg)
	}

	secret, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}
	m.secret = secret
	return m, nil
}

// IntegritySecret returns the resolved HMAC key.
func (m *Manager) IntegritySecret() []byte {
	return m.secret
}

func (m *Manager) resolve(ctx context.Context) ([]byte, error) {
	configured := m.cfg.Security.IntegritySecret

	if configured == "" {
		if m.cfg.IsProduction() {
			// Config validation already rejects this; guard anyway so
			// the manager can never silently mint a production key.
			return nil, ErrNoSecret
		}
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate dev secret: %w", err)
		}
		m.logger.Warn("no integrity secret configured, generated ephemeral dev key",
			zap.String("environment", m.cfg.Environment),
			zap.String("consequence", "issued credentials will not verify after restart"),
		)
		return key, nil
	}

	if !m.cfg.KMS.Enabled {
		return []byte(configured), nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(configured)
	if err != nil {
		return nil, fmt.Errorf("integrity secret is not valid base64 KMS ciphertext: %w", err)
	}

	out, err := m.kms.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: ciphertext})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt integrity secret via KMS: %w", err)
	}

	m.logger.Info("integrity secret decrypted via KMS",
		zap.String("key_id", m.cfg.KMS.KeyID),
	)
	return out.Plaintext, nil
}
