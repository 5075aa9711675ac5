package sign

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer produces Ethereum signatures on behalf of a single address.
type Signer interface {
	// Address returns the address derived from the signing key.
	Address() common.Address
	// SignHash signs a pre-computed 32-byte hash.
	SignHash(hash []byte) (Signature, error)
	// PersonalSign signs a message with the EIP-191 personal prefix.
	PersonalSign(message []byte) (Signature, error)
	// SignTypedData signs an EIP-712 typed-data payload.
	SignTypedData(td apitypes.TypedData) (Signature, error)
}

// Signature is a 65-byte Ethereum signature (r || s || v).
type Signature []byte

// String implements fmt.Stringer, encoding the signature as 0x-prefixed hex.
func (s Signature) String() string { return hexutil.Encode(s) }

// MarshalJSON encodes the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex string into the signature.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// ParseSignature decodes a 0x-prefixed hex signature.
func ParseSignature(hexSig string) (Signature, error) {
	decoded, err := hexutil.Decode(hexSig)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(decoded) != 65 {
		return nil, fmt.Errorf("invalid signature length: got %d, want 65", len(decoded))
	}
	return decoded, nil
}

// PersonalHash returns the EIP-191 hash of message, i.e.
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func PersonalHash(message []byte) []byte {
	return accounts.TextHash(message)
}

// RecoverPersonal recovers the address that produced sig over message using
// the EIP-191 personal prefix encoding. It is a pure function and depends on
// nothing but its inputs.
func RecoverPersonal(message []byte, sig Signature) (common.Address, error) {
	return RecoverFromHash(PersonalHash(message), sig)
}

// RecoverTypedData recovers the address that signed an EIP-712 payload.
func RecoverTypedData(td apitypes.TypedData, sig Signature) (common.Address, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return RecoverFromHash(hash, sig)
}

// RecoverFromHash recovers the signing address from a pre-computed hash.
func RecoverFromHash(hash []byte, sig Signature) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: got %d, want 65", len(sig))
	}

	// Work on a copy: v arrives as 27/28 but SigToPub wants 0/1.
	localSig := make([]byte, 65)
	copy(localSig, sig)
	if localSig[64] >= 27 {
		localSig[64] -= 27
	}

	pubKey, err := ethcrypto.SigToPub(hash, localSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}
