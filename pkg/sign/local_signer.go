package sign

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var _ Signer = (*LocalSigner)(nil)

// LocalSigner signs with an in-memory secp256k1 private key.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewLocalSigner wraps an existing private key.
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		privateKey: key,
		address:    ethcrypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewLocalSignerFromHex creates a signer from a hex-encoded private key,
// with or without the 0x prefix.
func NewLocalSignerFromHex(privateKeyHex string) (*LocalSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := ethcrypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}
	return NewLocalSigner(key), nil
}

// Address returns the address derived from the signing key.
func (s *LocalSigner) Address() common.Address { return s.address }

// PrivateKey exposes the raw key. Only the local wallet provider is expected
// to call this.
func (s *LocalSigner) PrivateKey() *ecdsa.PrivateKey { return s.privateKey }

// SignHash signs a pre-computed 32-byte hash and normalizes v to 27/28.
func (s *LocalSigner) SignHash(hash []byte) (Signature, error) {
	sig, err := ethcrypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return Signature(sig), nil
}

// PersonalSign signs a message with the EIP-191 personal prefix.
func (s *LocalSigner) PersonalSign(message []byte) (Signature, error) {
	return s.SignHash(PersonalHash(message))
}

// SignTypedData hashes the payload per EIP-712 (domain separator plus struct
// hash) and signs the result.
func (s *LocalSigner) SignTypedData(td apitypes.TypedData) (Signature, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return s.SignHash(hash)
}
