package walletcore

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// NormalizeTypedData rewrites a serialized EIP-712 payload into the shape
// remote signers tolerate. External signers reject native numeric or nested
// JSON values inside the message slot, so:
//
//  1. message.uid, a base64-encoded opaque identifier, is re-encoded as a
//     0x-prefixed hex string;
//  2. every other field under message is coerced to its string
//     representation (numbers, booleans and nested values become strings).
//
// Fields outside message are left untouched. Any field this transform missed
// would cause a remote-signer rejection or a silently wrong signature, so
// the coverage here is deliberately blanket.
func NormalizeTypedData(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // keep numeric literals verbatim

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid typed data payload: %w", err)
	}

	message, ok := doc["message"].(map[string]any)
	if !ok {
		return raw, nil
	}

	for key, value := range message {
		if key == "uid" {
			converted, err := uidToHex(value)
			if err != nil {
				return nil, err
			}
			message[key] = converted
			continue
		}
		message[key] = stringify(value)
	}

	return json.Marshal(doc)
}

// NormalizedTypedDataJSON serializes td and applies NormalizeTypedData,
// producing the document handed to eth_signTypedData_v4 on the remote path.
func NormalizedTypedDataJSON(td apitypes.TypedData) (string, error) {
	raw, err := json.Marshal(td)
	if err != nil {
		return "", fmt.Errorf("failed to serialize typed data: %w", err)
	}
	normalized, err := NormalizeTypedData(raw)
	if err != nil {
		return "", err
	}
	return string(normalized), nil
}

// uidToHex decodes a base64 opaque identifier and re-encodes it as hex.
func uidToHex(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("typed data uid must be a base64 string, got %T", value)
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("typed data uid is not valid base64: %w", err)
	}
	return "0x" + hex.EncodeToString(decoded), nil
}

// stringify coerces a JSON value to its string representation. Nested
// objects and arrays become their compact JSON encoding.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
