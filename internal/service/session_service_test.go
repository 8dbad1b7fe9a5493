package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/store"
	"github.com/noah-isme/marksvault/pkg/vault"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

type mockSessionStore struct {
	unlocked   bool
	passphrase string
	unlockErr  error
	rekeyCalls []string
}

func (m *mockSessionStore) IsUnlocked() bool { return m.unlocked }

func (m *mockSessionStore) Unlock(ctx context.Context, passphrase string) (bool, error) {
	if m.unlockErr != nil {
		return false, m.unlockErr
	}
	if passphrase != m.passphrase {
		return false, nil
	}
	m.unlocked = true
	return true, nil
}

func (m *mockSessionStore) Lock() error {
	m.unlocked = false
	return nil
}

func (m *mockSessionStore) Rekey(ctx context.Context, oldPassphrase, newPassphrase string) error {
	m.rekeyCalls = append(m.rekeyCalls, "rekey")
	if !m.unlocked {
		return store.ErrLocked
	}
	if oldPassphrase != m.passphrase {
		return store.ErrWrongPassphrase
	}
	m.passphrase = newPassphrase
	return nil
}

func (m *mockSessionStore) ChangePassphrase(ctx context.Context, newPassphrase string) error {
	m.rekeyCalls = append(m.rekeyCalls, "change")
	if !m.unlocked {
		return store.ErrLocked
	}
	if newPassphrase == " " {
		return vault.ErrEmptyPassphrase
	}
	m.passphrase = newPassphrase
	return nil
}

func TestSessionUnlockLifecycle(t *testing.T) {
	st := &mockSessionStore{passphrase: "s3cret"}
	svc := NewSessionService(st, NewMetricsService(), nil, nil)
	ctx := context.Background()

	assert.False(t, svc.Status().Unlocked)

	_, err := svc.Unlock(ctx, UnlockRequest{Passphrase: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCrypto.Code, appCode(t, err))
	assert.Equal(t, appErrors.ErrCrypto.Message, err.Error())
	assert.False(t, svc.Status().Unlocked)

	status, err := svc.Unlock(ctx, UnlockRequest{Passphrase: "s3cret"})
	require.NoError(t, err)
	assert.True(t, status.Unlocked)

	status, err = svc.Lock()
	require.NoError(t, err)
	assert.False(t, status.Unlocked)
	assert.False(t, svc.Status().Unlocked)
}

func TestSessionUnlockValidation(t *testing.T) {
	svc := NewSessionService(&mockSessionStore{}, nil, nil, nil)
	_, err := svc.Unlock(context.Background(), UnlockRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))
}

func TestSessionUnlockStoreFailure(t *testing.T) {
	svc := NewSessionService(&mockSessionStore{unlockErr: errors.Join(store.ErrStore, errors.New("disk full"))}, nil, nil, nil)
	_, err := svc.Unlock(context.Background(), UnlockRequest{Passphrase: "x"})
	assert.Equal(t, appErrors.ErrStore.Code, appCode(t, err))
}

func TestSessionChangePassword(t *testing.T) {
	st := &mockSessionStore{passphrase: "old", unlocked: true}
	svc := NewSessionService(st, nil, nil, nil)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, ChangePasswordRequest{Current: "nope", New: "new"})
	assert.Equal(t, appErrors.ErrCrypto.Code, appCode(t, err))
	assert.Equal(t, "old", st.passphrase)

	require.NoError(t, svc.ChangePassword(ctx, ChangePasswordRequest{Current: "old", New: "new"}))
	assert.Equal(t, "new", st.passphrase)

	require.NoError(t, svc.ChangePassword(ctx, ChangePasswordRequest{New: "newer"}))
	assert.Equal(t, "newer", st.passphrase)
	assert.Equal(t, []string{"rekey", "rekey", "change"}, st.rekeyCalls)

	err = svc.ChangePassword(ctx, ChangePasswordRequest{New: " "})
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))

	err = svc.ChangePassword(ctx, ChangePasswordRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))

	st.unlocked = false
	err = svc.ChangePassword(ctx, ChangePasswordRequest{New: "again"})
	assert.Equal(t, appErrors.ErrLocked.Code, appCode(t, err))
}
