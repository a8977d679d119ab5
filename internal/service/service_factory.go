package service

import (
	"credential-service/internal/audit"
	"credential-service/internal/biometric"
	"credential-service/internal/config"
	"credential-service/internal/directory"
	"credential-service/internal/qrcode"

	"go.uber.org/zap"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	codec     *qrcode.Codec
	directory directory.Directory
	revChecker qrcode.RevocationChecker
	revoker   Revoker
	auth      biometric.Authenticator
	store     biometric.EnrollmentStore
	attempts  biometric.AttemptTracker
	log       *audit.Log
	cfg       *config.Config
	logger    *zap.Logger

	credentialService *CredentialService
	biometricService  *biometric.Service
}

// NewServiceFactory wires the service layer from already-initialized
// dependencies. revChecker, revoker, and attempts may be nil when the
// backing stores are unavailable; the services degrade accordingly.
func NewServiceFactory(
	codec *qrcode.Codec,
	dir directory.Directory,
	revChecker qrcode.RevocationChecker,
	revoker Revoker,
	auth biometric.Authenticator,
	store biometric.EnrollmentStore,
	attempts biometric.AttemptTracker,
	log *audit.Log,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		codec:      codec,
		directory:  dir,
		revChecker: revChecker,
		revoker:    revoker,
		auth:       auth,
		store:      store,
		attempts:   attempts,
		log:        log,
		cfg:        cfg,
		logger:     logger,
	}
}

// CredentialService returns the credential service instance (singleton)
func (f *ServiceFactory) CredentialService() *CredentialService {
	if f.credentialService == nil {
		verifier := qrcode.NewVerifier(f.codec, f.directory, f.revChecker, f.log, f.logger.Named("qr-verifier"))
		f.credentialService = NewCredentialService(
			f.codec,
			verifier,
			f.revoker,
			f.log,
			f.cfg.Security.DefaultValidity,
			f.logger.Named("credentials"),
		)
	}
	return f.credentialService
}

// BiometricService returns the biometric service instance (singleton)
func (f *ServiceFactory) BiometricService() *biometric.Service {
	if f.biometricService == nil {
		f.biometricService = biometric.NewService(
			f.auth,
			f.store,
			f.attempts,
			f.log,
			f.cfg.Biometric,
			f.logger.Named("biometric"),
		)
	}
	return f.biometricService
}

// AuditLog exposes the shared feed for handlers and stats.
func (f *ServiceFactory) AuditLog() *audit.Log {
	return f.log
}

// Cleanup releases service-held resources. Services hold no goroutines
// of their own; sinks attached to the audit log are closed by the
// application factory.
func (f *ServiceFactory) Cleanup() {}
