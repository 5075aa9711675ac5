package sign

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T) *LocalSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewLocalSigner(key)
}

func TestPersonalSignRecover(t *testing.T) {
	signer := newSigner(t)

	messages := [][]byte{
		[]byte("hello"),
		[]byte(""),
		[]byte("non-ascii: éà 世界 🦊"),
		make([]byte, 1024),
	}
	for _, message := range messages {
		sig, err := signer.PersonalSign(message)
		require.NoError(t, err)
		require.Len(t, []byte(sig), 65)
		assert.GreaterOrEqual(t, sig[64], byte(27), "v is normalized to 27/28 on the wire")

		recovered, err := RecoverPersonal(message, sig)
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), recovered)
	}
}

func TestRecoverRejectsWrongSigner(t *testing.T) {
	a := newSigner(t)
	b := newSigner(t)

	sig, err := a.PersonalSign([]byte("msg"))
	require.NoError(t, err)

	recovered, err := RecoverPersonal([]byte("msg"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, b.Address(), recovered)
}

func TestRecoverFromHashLength(t *testing.T) {
	_, err := RecoverFromHash(make([]byte, 32), make(Signature, 10))
	assert.Error(t, err)
}

func TestSignTypedDataRecover(t *testing.T) {
	signer := newSigner(t)

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Order": []apitypes.Type{
				{Name: "amount", Type: "uint256"},
				{Name: "memo", Type: "string"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:    "App",
			ChainId: math.NewHexOrDecimal256(1),
		},
		Message: apitypes.TypedDataMessage{
			"amount": "42",
			"memo":   "typed",
		},
	}

	sig, err := signer.SignTypedData(td)
	require.NoError(t, err)

	recovered, err := RecoverTypedData(td, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestParseSignature(t *testing.T) {
	signer := newSigner(t)
	sig, err := signer.PersonalSign([]byte("msg"))
	require.NoError(t, err)

	parsed, err := ParseSignature(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = ParseSignature("0x1234")
	assert.Error(t, err)

	_, err = ParseSignature("not-hex")
	assert.Error(t, err)
}

func TestSignatureJSON(t *testing.T) {
	signer := newSigner(t)
	sig, err := signer.PersonalSign([]byte("msg"))
	require.NoError(t, err)

	data, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"0x`)

	var decoded Signature
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sig, decoded)
}

func TestNewLocalSignerFromHex(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	s1, err := NewLocalSignerFromHex(hexKey)
	require.NoError(t, err)
	s2, err := NewLocalSignerFromHex("0x" + hexKey)
	require.NoError(t, err)
	assert.Equal(t, s1.Address(), s2.Address())

	_, err = NewLocalSignerFromHex("zz")
	assert.Error(t, err)
}
