package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	appconfig "credential-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"
)

type fakeDecrypter struct {
	plaintext []byte
	err       error
	got       []byte
}

func (f *fakeDecrypter) Decrypt(_ context.Context, params *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.got = params.CiphertextBlob
	if f.err != nil {
		return nil, f.err
	}
	return &kms.DecryptOutput{Plaintext: f.plaintext}, nil
}

func testManager(cfg *appconfig.Config, dec kmsDecrypter) *Manager {
	return &Manager{cfg: cfg, kms: dec, logger: zap.NewNop()}
}

func TestResolveRawSecret(t *testing.T) {
	cfg := &appconfig.Config{
		Environment: "production",
		Security:    appconfig.SecurityConfig{IntegritySecret: "raw-key"},
	}

	secret, err := testManager(cfg, nil).resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(secret) != "raw-key" {
		t.Errorf("secret = %q", secret)
	}
}

func TestResolveDevFallbackIsRandom(t *testing.T) {
	cfg := &appconfig.Config{Environment: "development"}

	first, err := testManager(cfg, nil).resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := testManager(cfg, nil).resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("key length = %d, want 32", len(first))
	}
	if string(first) == string(second) {
		t.Error("two dev keys were identical")
	}
}

func TestResolveRefusesEmptyProductionSecret(t *testing.T) {
	cfg := &appconfig.Config{Environment: "production"}

	if _, err := testManager(cfg, nil).resolve(context.Background()); !errors.Is(err, ErrNoSecret) {
		t.Errorf("got %v, want ErrNoSecret", err)
	}
}

func TestResolveViaKMS(t *testing.T) {
	ciphertext := []byte("encrypted-bytes")
	cfg := &appconfig.Config{
		Environment: "production",
		Security: appconfig.SecurityConfig{
			IntegritySecret: base64.StdEncoding.EncodeToString(ciphertext),
		},
		KMS: appconfig.KMSConfig{Enabled: true, KeyID: "key-1"},
	}
	dec := &fakeDecrypter{plaintext: []byte("the-real-key")}

	secret, err := testManager(cfg, dec).resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(secret) != "the-real-key" {
		t.Errorf("secret = %q", secret)
	}
	if string(dec.got) != string(ciphertext) {
		t.Errorf("ciphertext passed to KMS = %q", dec.got)
	}
}

func TestResolveRejectsBadCiphertext(t *testing.T) {
	cfg := &appconfig.Config{
		Environment: "production",
		Security:    appconfig.SecurityConfig{IntegritySecret: "!!!not-base64!!!"},
		KMS:         appconfig.KMSConfig{Enabled: true, KeyID: "key-1"},
	}

	if _, err := testManager(cfg, &fakeDecrypter{}).resolve(context.Background()); err == nil {
		t.Error("expected error for invalid ciphertext")
	}

	cfg.Security.IntegritySecret = base64.StdEncoding.EncodeToString([]byte("ct"))
	dec := &fakeDecrypter{err: errors.New("access denied")}
	if _, err := testManager(cfg, dec).resolve(context.Background()); err == nil {
		t.Error("expected error when KMS decrypt fails")
	}
}
