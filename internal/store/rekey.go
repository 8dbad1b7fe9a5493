package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/pkg/vault"
)

// Rekey reseals the whole store under newPassphrase after checking oldPassphrase
// against the session key. The vault is replaced in a single rename, so either the
// old or the new sealing is on disk, never a mix.
func (s *Store) Rekey(ctx context.Context, oldPassphrase, newPassphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrLocked
	}

	data, err := os.ReadFile(s.cfg.VaultPath)
	if err != nil {
		return fmt.Errorf("%w: read vault: %v", ErrStore, err)
	}
	current, err := vault.KeyFor(oldPassphrase, data)
	if err != nil {
		if isCryptoFailure(err) {
			return ErrWrongPassphrase
		}
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer current.Destroy()
	if !current.Equal(s.key) {
		return ErrWrongPassphrase
	}
	return s.rekey(ctx, newPassphrase)
}

// ChangePassphrase reseals the store under newPassphrase on the authority of the open session.
func (s *Store) ChangePassphrase(ctx context.Context, newPassphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrLocked
	}
	return s.rekey(ctx, newPassphrase)
}

func (s *Store) rekey(ctx context.Context, newPassphrase string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next, err := vault.NewKey(newPassphrase, s.cfg.Iterations)
	if err != nil {
		if errors.Is(err, vault.ErrEmptyPassphrase) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := s.sealWith(next); err != nil {
		next.Destroy()
		s.logger.Error("rekey failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	s.key.Destroy()
	s.key = next
	s.logger.Info("vault rekeyed")
	return nil
}
