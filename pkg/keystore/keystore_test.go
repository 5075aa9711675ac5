package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	return m
}

func TestUnlockOrCreateGeneratesAndPersists(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Exists())

	key, err := m.UnlockOrCreate(1, "password", nil)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.True(t, m.Exists())

	// Unlocking again returns the same key.
	again, err := m.UnlockOrCreate(1, "password", nil)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(again.PublicKey))
}

func TestUnlockOrCreateWrongPassword(t *testing.T) {
	m := newTestManager(t)

	_, err := m.UnlockOrCreate(1, "correct", nil)
	require.NoError(t, err)

	_, err = m.UnlockOrCreate(1, "wrong", nil)
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestUnlockOrCreateRawKeySkipsFile(t *testing.T) {
	m := newTestManager(t)

	raw, err := crypto.GenerateKey()
	require.NoError(t, err)

	key, err := m.UnlockOrCreate(1, "", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, key)
	assert.False(t, m.Exists(), "raw keys are wrapped directly, no file I/O")
}

func TestUnlockOrCreateEmptyPasswordFallback(t *testing.T) {
	m := newTestManager(t)

	// Empty password uses the device-stable fallback, so the key survives
	// a reopen on the same machine.
	key, err := m.UnlockOrCreate(1, "", nil)
	require.NoError(t, err)

	again, err := m.UnlockOrCreate(1, "", nil)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(again.PublicKey))
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.Delete(), "nothing to delete")

	_, err := m.UnlockOrCreate(1, "pw", nil)
	require.NoError(t, err)
	require.True(t, m.Exists())

	assert.True(t, m.Delete())
	assert.False(t, m.Exists())
	assert.False(t, m.Delete(), "second delete reports false, never errors")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	data, err := Encrypt(key, "pw")
	require.NoError(t, err)
	assert.Contains(t, string(data), "crypto", "document is self-describing keystore JSON")

	decrypted, err := Decrypt(data, "pw")
	require.NoError(t, err)
	assert.Equal(t, key.D, decrypted.D)

	_, err = Decrypt(data, "other")
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestKeystoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	require.NoError(t, err)

	_, err = m.UnlockOrCreate(1, "pw", nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "walletcore-keystore.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestImport(t *testing.T) {
	m := newTestManager(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, m.Import(key, "seed-pw"))
	assert.True(t, m.Exists())

	unlocked, err := m.UnlockOrCreate(1, "seed-pw", nil)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(unlocked.PublicKey))

	// Import replaces an existing keystore.
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, m.Import(other, "seed-pw"))

	unlocked, err = m.UnlockOrCreate(1, "seed-pw", nil)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(other.PublicKey), crypto.PubkeyToAddress(unlocked.PublicKey))
}
