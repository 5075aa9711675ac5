// Package keystore manages the single encrypted key file backing the local
// wallet provider.
//
// The on-disk format is the standard Ethereum keystore v3 document: scrypt
// key derivation with the KDF parameters embedded in the JSON, so a file can
// always be decrypted without any external parameter state. One file exists
// per device profile; it is created on first use, overwritten only by
// explicit regeneration, and removed only by an explicit Delete call.
package keystore

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	gethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/erc4361/walletcore/pkg/log"
)

// ErrIncorrectPassword reports a keystore that exists but could not be
// decrypted with the supplied password. It is distinct from any other
// failure so callers can prompt the user again.
var ErrIncorrectPassword = errors.New("incorrect keystore password")

const keyFileName = "walletcore-keystore.json"

// Manager owns the keystore file for one device profile.
type Manager struct {
	path string
	lg   log.Logger
}

// NewManager creates a manager rooted at dir. An empty dir resolves to the
// per-user config directory.
func NewManager(dir string, lg log.Logger) (*Manager, error) {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve user config dir")
		}
		dir = filepath.Join(base, "walletcore")
	}
	return &Manager{
		path: filepath.Join(dir, keyFileName),
		lg:   lg.WithName("keystore"),
	}, nil
}

// Path returns the keystore file location.
func (m *Manager) Path() string { return m.path }

// Exists reports whether a keystore file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// UnlockOrCreate returns the local private key, in order of preference:
// a caller-supplied raw key (wrapped directly, no file I/O), the decrypted
// existing keystore file, or a freshly generated key that is persisted
// encrypted before being returned.
//
// An empty password falls back to a device-stable identifier, so a key
// created without a password can still be recovered on the same machine.
func (m *Manager) UnlockOrCreate(chainID uint64, password string, rawKey *ecdsa.PrivateKey) (*ecdsa.PrivateKey, error) {
	if rawKey != nil {
		return rawKey, nil
	}

	auth := password
	if auth == "" {
		auth = deviceSecret()
	}

	if m.Exists() {
		data, err := os.ReadFile(m.path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read keystore file")
		}
		key, err := Decrypt(data, auth)
		if err != nil {
			return nil, err
		}
		m.lg.Debug("unlocked existing keystore", "path", m.path, "chainId", chainID)
		return key, nil
	}

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	data, err := Encrypt(key, auth)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create keystore dir")
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return nil, errors.Wrap(err, "failed to write keystore file")
	}
	m.lg.Info("created new keystore",
		"path", m.path,
		"address", ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		"chainId", chainID)
	return key, nil
}

// Import encrypts key under password and persists it, replacing any existing
// keystore file. Subsequent UnlockOrCreate calls with the same password
// return this key.
func (m *Manager) Import(key *ecdsa.PrivateKey, password string) error {
	data, err := Encrypt(key, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return errors.Wrap(err, "failed to create keystore dir")
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write keystore file")
	}
	m.lg.Info("imported key into keystore",
		"path", m.path,
		"address", ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}

// Delete removes the keystore file. Best effort: it reports success as a
// boolean and never propagates an error.
func (m *Manager) Delete() bool {
	if err := os.Remove(m.path); err != nil {
		if !os.IsNotExist(err) {
			m.lg.Warn("failed to delete keystore file", "path", m.path, "error", err)
		}
		return false
	}
	return true
}

// Encrypt serializes key into a self-describing keystore v3 document using
// scrypt with the standard work factor.
func Encrypt(key *ecdsa.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		password = deviceSecret()
	}
	k := &gethkeystore.Key{
		Id:         uuid.New(),
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
	data, err := gethkeystore.EncryptKey(k, password, gethkeystore.StandardScryptN, gethkeystore.StandardScryptP)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt key")
	}
	return data, nil
}

// Decrypt reverses Encrypt. A wrong password yields ErrIncorrectPassword,
// never a different key.
func Decrypt(data []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		password = deviceSecret()
	}
	k, err := gethkeystore.DecryptKey(data, password)
	if err != nil {
		if errors.Is(err, gethkeystore.ErrDecrypt) {
			return nil, ErrIncorrectPassword
		}
		return nil, errors.Wrap(err, "failed to decrypt keystore")
	}
	return k.PrivateKey, nil
}

// deviceSecret derives a stable per-device fallback password from attributes
// that survive process restarts. It is an obfuscation layer, not a
// substitute for a real password.
func deviceSecret() string {
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	sum := sha256.Sum256(fmt.Appendf(nil, "walletcore|%s|%s", hostname, home))
	return hex.EncodeToString(sum[:])
}
