// Package store keeps the marks database sealed at rest and serves typed
// transactions over a decrypted working copy while a session is unlocked.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/pkg/database"
	"github.com/noah-isme/marksvault/pkg/vault"
)

var (
	// ErrLocked is returned by every data operation while no session is unlocked.
	ErrLocked = errors.New("store: locked")
	// ErrStore wraps I/O and commit failures. Prior committed state is left intact.
	ErrStore = errors.New("store: persistence failure")
	// ErrWrongPassphrase is returned by Rekey when the current passphrase does not match.
	ErrWrongPassphrase = errors.New("store: passphrase mismatch")
)

const workFileName = "marks.db"

// Config configures a Store.
type Config struct {
	VaultPath    string
	WorkDir      string
	Iterations   int
	MaxOpenConns int
}

// Store owns the session lifecycle locked -> unlocked -> locked.
//
// Readers share mu; every mutation, seal and rekey holds it exclusively.
type Store struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	unlocked atomic.Bool
	key      *vault.Key
	db       *sqlx.DB
	workDir  string
	workPath string
}

// New constructs a locked Store.
func New(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = vault.DefaultIterations
	}
	return &Store{cfg: cfg, logger: logger}
}

// VaultPath returns the sealed file location.
func (s *Store) VaultPath() string {
	return s.cfg.VaultPath
}

// IsUnlocked reports whether a session is open.
func (s *Store) IsUnlocked() bool {
	return s.unlocked.Load()
}

// Unlock opens a session. When no vault exists yet, a new empty one is created and
// sealed with passphrase. A wrong passphrase or a damaged vault yields false with no
// state change; only non-cryptographic failures are returned as errors.
func (s *Store) Unlock(ctx context.Context, passphrase string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.verify(passphrase)
	}

	exists, err := vault.Exists(s.cfg.VaultPath)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !exists {
		return s.bootstrap(ctx, passphrase)
	}

	data, err := os.ReadFile(s.cfg.VaultPath)
	if err != nil {
		return false, fmt.Errorf("%w: read vault: %v", ErrStore, err)
	}
	plaintext, key, err := vault.Unseal(passphrase, data)
	if err != nil {
		if isCryptoFailure(err) {
			s.logger.Warn("vault unlock rejected")
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer vault.ZeroBytes(plaintext)

	if err := s.open(ctx, key, plaintext); err != nil {
		key.Destroy()
		return false, err
	}
	s.logger.Info("vault unlocked")
	return true, nil
}

func (s *Store) verify(passphrase string) (bool, error) {
	data, err := os.ReadFile(s.cfg.VaultPath)
	if err != nil {
		return false, fmt.Errorf("%w: read vault: %v", ErrStore, err)
	}
	candidate, err := vault.KeyFor(passphrase, data)
	if err != nil {
		if isCryptoFailure(err) {
			s.logger.Warn("vault unlock rejected")
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer candidate.Destroy()
	if !candidate.Equal(s.key) {
		s.logger.Warn("vault unlock rejected")
		return false, nil
	}
	return true, nil
}

func (s *Store) bootstrap(ctx context.Context, passphrase string) (bool, error) {
	key, err := vault.NewKey(passphrase, s.cfg.Iterations)
	if err != nil {
		if isCryptoFailure(err) {
			s.logger.Warn("vault unlock rejected")
			return false, nil
		}
		return false, err
	}
	if err := s.open(ctx, key, nil); err != nil {
		key.Destroy()
		return false, err
	}
	s.logger.Info("vault created", zap.String("path", s.cfg.VaultPath))
	return true, nil
}

// open materialises plaintext as the working copy, migrates it and makes key the session key.
// A nil plaintext starts an empty database.
func (s *Store) open(ctx context.Context, key *vault.Key, plaintext []byte) error {
	dir, err := os.MkdirTemp(s.cfg.WorkDir, "marksvault-*")
	if err != nil {
		return fmt.Errorf("%w: create work dir: %v", ErrStore, err)
	}
	workPath := filepath.Join(dir, workFileName)
	if plaintext != nil {
		if err := os.WriteFile(workPath, plaintext, 0o600); err != nil {
			_ = os.RemoveAll(dir)
			return fmt.Errorf("%w: write working copy: %v", ErrStore, err)
		}
	}

	db, err := database.NewSQLite(ctx, database.SQLiteConfig{Path: workPath, MaxOpenConns: s.cfg.MaxOpenConns})
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("%w: open working copy: %v", ErrStore, err)
	}
	applied, err := migrate(ctx, db, s.logger)
	if err != nil {
		_ = db.Close()
		_ = os.RemoveAll(dir)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.key, s.db, s.workDir, s.workPath = key, db, dir, workPath
	s.unlocked.Store(true)

	if plaintext == nil || applied > 0 {
		if err := s.seal(); err != nil {
			_ = s.teardown()
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
	}
	return nil
}

// Lock closes the session, removes the working copy and destroys the key.
func (s *Store) Lock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.teardown()
	s.logger.Info("vault locked")
	return err
}

func (s *Store) teardown() error {
	s.unlocked.Store(false)
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.workDir != "" {
		if rmErr := os.RemoveAll(s.workDir); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	s.key.Destroy()
	s.key, s.db, s.workDir, s.workPath = nil, nil, "", ""
	return err
}

// View runs fn in a transaction that is always rolled back. Views run concurrently.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrLocked
	}
	return s.inTx(ctx, fn, false)
}

// Update runs fn in one transaction, commits it and reseals the vault before returning.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrLocked
	}
	if err := s.inTx(ctx, fn, true); err != nil {
		return err
	}
	return s.persist(ctx)
}

// Batch holds the store exclusively while fn commits independent units through the
// Batch, then seals once. When fn fails, committed units are discarded and the working
// copy is restored from the vault.
func (s *Store) Batch(ctx context.Context, fn func(*Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrLocked
	}

	b := &Batch{ctx: ctx, store: s}
	if err := fn(b); err != nil {
		if b.committed > 0 {
			if rerr := s.restore(ctx); rerr != nil {
				s.logger.Error("restore working copy failed", zap.Error(rerr))
			}
		}
		return err
	}
	if b.committed == 0 {
		return nil
	}
	return s.persist(ctx)
}

// Simulate runs fn with exclusive access in a transaction that is always rolled back.
func (s *Store) Simulate(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrLocked
	}
	return s.inTx(ctx, fn, false)
}

func (s *Store) inTx(ctx context.Context, fn func(*Tx) error, commit bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	if err := fn(newTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if !commit {
		return tx.Rollback()
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return nil
}

// persist seals the working copy. On failure the working copy is rolled back to the
// last sealed state so memory and disk never diverge.
func (s *Store) persist(ctx context.Context) error {
	if err := s.seal(); err != nil {
		s.logger.Error("seal vault failed", zap.Error(err))
		if rerr := s.restore(ctx); rerr != nil {
			s.logger.Error("restore working copy failed", zap.Error(rerr))
		}
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func (s *Store) seal() error {
	return s.sealWith(s.key)
}

func (s *Store) sealWith(key *vault.Key) error {
	plaintext, err := os.ReadFile(s.workPath)
	if err != nil {
		return fmt.Errorf("read working copy: %w", err)
	}
	defer vault.ZeroBytes(plaintext)
	return vault.SealFile(s.cfg.VaultPath, key, plaintext)
}

// restore replaces the working copy with the sealed vault contents. If that is not
// possible the session is closed.
func (s *Store) restore(ctx context.Context) error {
	fail := func(err error) error {
		_ = s.teardown()
		return err
	}
	if err := s.db.Close(); err != nil {
		return fail(fmt.Errorf("close working copy: %w", err))
	}
	data, err := os.ReadFile(s.cfg.VaultPath)
	if err != nil {
		return fail(fmt.Errorf("read vault: %w", err))
	}
	plaintext, err := s.key.Open(data)
	if err != nil {
		return fail(fmt.Errorf("open vault: %w", err))
	}
	defer vault.ZeroBytes(plaintext)
	if err := os.WriteFile(s.workPath, plaintext, 0o600); err != nil {
		return fail(fmt.Errorf("write working copy: %w", err))
	}
	db, err := database.NewSQLite(ctx, database.SQLiteConfig{Path: s.workPath, MaxOpenConns: s.cfg.MaxOpenConns})
	if err != nil {
		return fail(fmt.Errorf("reopen working copy: %w", err))
	}
	s.db = db
	s.logger.Warn("working copy restored from vault")
	return nil
}

func isCryptoFailure(err error) bool {
	return errors.Is(err, vault.ErrDecrypt) || errors.Is(err, vault.ErrEmptyPassphrase)
}
