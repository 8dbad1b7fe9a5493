package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/pkg/vault"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

type sessionStore interface {
	IsUnlocked() bool
	Unlock(ctx context.Context, passphrase string) (bool, error)
	Lock() error
	Rekey(ctx context.Context, oldPassphrase, newPassphrase string) error
	ChangePassphrase(ctx context.Context, newPassphrase string) error
}

// UnlockRequest carries the passphrase for decrypt_db.
type UnlockRequest struct {
	Passphrase string `json:"passphrase" validate:"required"`
}

// ChangePasswordRequest rekeys the vault. Current is optional: when empty the unlocked
// session authorises the change.
type ChangePasswordRequest struct {
	Current string `json:"current_passphrase"`
	New     string `json:"new_passphrase" validate:"required"`
}

// SessionStatus reports the session state.
type SessionStatus struct {
	Unlocked bool `json:"unlocked"`
}

// SessionService manages the store session lifecycle.
type SessionService struct {
	store     sessionStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(st sessionStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{store: st, metrics: metrics, validator: validate, logger: logger}
}

// Status answers check_decryption.
func (s *SessionService) Status() SessionStatus {
	return SessionStatus{Unlocked: s.store.IsUnlocked()}
}

// Unlock answers decrypt_db. A rejected passphrase yields ErrCrypto without detail.
func (s *SessionService) Unlock(ctx context.Context, req UnlockRequest) (SessionStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return SessionStatus{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "passphrase is required")
	}
	ok, err := s.store.Unlock(ctx, req.Passphrase)
	if err != nil {
		return SessionStatus{}, translate(err, "failed to open record store")
	}
	s.metrics.RecordUnlock(ok)
	if !ok {
		return SessionStatus{}, appErrors.Clone(appErrors.ErrCrypto, "")
	}
	return SessionStatus{Unlocked: true}, nil
}

// Lock closes the session.
func (s *SessionService) Lock() (SessionStatus, error) {
	if err := s.store.Lock(); err != nil {
		s.logger.Error("lock failed", zap.Error(err))
		return SessionStatus{Unlocked: s.store.IsUnlocked()}, translate(err, "failed to lock record store")
	}
	s.metrics.RecordLock()
	return SessionStatus{Unlocked: false}, nil
}

// ChangePassword answers change_password by resealing the vault under the new passphrase.
func (s *SessionService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "new passphrase is required")
	}
	var err error
	if req.Current != "" {
		err = s.store.Rekey(ctx, req.Current, req.New)
	} else {
		err = s.store.ChangePassphrase(ctx, req.New)
	}
	if errors.Is(err, vault.ErrEmptyPassphrase) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "new passphrase is required")
	}
	if err != nil {
		return translate(err, "failed to change passphrase")
	}
	s.logger.Info("vault passphrase changed")
	return nil
}
