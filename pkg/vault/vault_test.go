package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIterations = 1000

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := NewKey("correct horse", testIterations)
	require.NoError(t, err)

	sealed, err := key.Seal([]byte("marks"))
	require.NoError(t, err)
	assert.Equal(t, "MVLT", string(sealed[:4]))

	plaintext, err := key.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "marks", string(plaintext))

	plaintext, derived, err := Unseal("correct horse", sealed)
	require.NoError(t, err)
	assert.Equal(t, "marks", string(plaintext))
	assert.True(t, derived.Equal(key))
	assert.Equal(t, testIterations, derived.Iterations())
}

func TestUnsealWrongPassphrase(t *testing.T) {
	key, err := NewKey("right", testIterations)
	require.NoError(t, err)
	sealed, err := key.Seal([]byte("secret"))
	require.NoError(t, err)

	_, _, err = Unseal("wrong", sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpenRejectsTamperedPayload(t *testing.T) {
	key, err := NewKey("pass", testIterations)
	require.NoError(t, err)
	sealed, err := key.Seal([]byte("payload"))
	require.NoError(t, err)

	body := append([]byte(nil), sealed...)
	body[len(body)-1] ^= 0xFF
	_, err = key.Open(body)
	assert.ErrorIs(t, err, ErrDecrypt)

	head := append([]byte(nil), sealed...)
	head[6] ^= 0x01
	_, err = key.Open(head)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = key.Open([]byte("MVLT"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewKeyUsesFreshSalt(t *testing.T) {
	a, err := NewKey("same", testIterations)
	require.NoError(t, err)
	b, err := NewKey("same", testIterations)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))

	sealed, err := a.Seal([]byte("x"))
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestEmptyPassphrase(t *testing.T) {
	_, err := NewKey("", testIterations)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestDestroy(t *testing.T) {
	key, err := NewKey("pass", testIterations)
	require.NoError(t, err)
	key.Destroy()
	_, err = key.Seal([]byte("x"))
	assert.Error(t, err)
	assert.False(t, key.Equal(key))
}

func TestSealFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "marks.vault")

	exists, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	key, err := NewKey("pass", testIterations)
	require.NoError(t, err)
	require.NoError(t, SealFile(path, key, []byte("v1")))
	require.NoError(t, SealFile(path, key, []byte("v2")))

	exists, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	plaintext, err := key.Open(data)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(plaintext))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
