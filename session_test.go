package walletcore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc4361/walletcore/pkg/keystore"
	"github.com/erc4361/walletcore/pkg/sign"
)

// newMailTypedData is a minimal EIP-712 payload with both a message slot
// and a domain, used to observe the remote-path normalization.
func newMailTypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Mail": []apitypes.Type{
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:    "App",
			ChainId: math.NewHexOrDecimal256(1),
		},
		Message: apitypes.TypedDataMessage{
			"contents": "Hello",
		},
	}
}

func TestIsConnectedBeforeConnect(t *testing.T) {
	session := NewSession()
	assert.False(t, session.IsConnected())

	_, err := session.Address()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectUnsupportedKind(t *testing.T) {
	// No collaborators at all: every kind is unsupported.
	session := NewSession()

	for _, kind := range []ProviderKind{KindLocal, KindInjected, KindWalletConnect, KindSmartAccount, KindBridge} {
		_, err := session.Connect(context.Background(), Connection{Provider: kind, ChainID: 1, Password: "pw"}, "")
		assert.ErrorIs(t, err, ErrUnsupportedOnPlatform, "kind %s", kind)
	}
}

func TestConnectValidatesConnection(t *testing.T) {
	session := NewSession()

	_, err := session.Connect(context.Background(), Connection{Provider: "carrier-pigeon", ChainID: 1}, "")
	assert.Error(t, err)

	_, err = session.Connect(context.Background(), Connection{Provider: KindLocal}, "")
	assert.Error(t, err, "chain id is required")
}

func TestConnectLocalLifecycle(t *testing.T) {
	ks, err := keystore.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	session := NewSession(WithKeystore(ks))

	address, err := session.Connect(context.Background(), Connection{
		Provider: KindLocal,
		ChainID:  1,
		Password: "pw",
	}, "")
	require.NoError(t, err)
	assert.True(t, session.IsConnected())

	chainID, err := session.ChainID()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), chainID)

	// Reconnecting unlocks the same persisted key.
	again, err := session.Connect(context.Background(), Connection{
		Provider: KindLocal,
		ChainID:  1,
		Password: "pw",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, address, again)

	require.NoError(t, session.Disconnect(context.Background()))
	assert.False(t, session.IsConnected())
	_, err = session.SignMessage(context.Background(), []byte("hi"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLoginVerifyEndToEnd(t *testing.T) {
	ks, err := keystore.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	session := NewSession(WithKeystore(ks))

	address, err := session.Connect(context.Background(), Connection{
		Provider: KindLocal,
		ChainID:  1,
		Password: "pw",
	}, "")
	require.NoError(t, err)

	payload, err := session.Login(context.Background(), "example.com", "")
	require.NoError(t, err)

	assert.Equal(t, "example.com", payload.Payload.Domain)
	assert.Equal(t, "1", payload.Payload.Version)
	assert.NotEmpty(t, payload.Payload.Nonce)
	assert.Equal(t, address.Hex(), payload.Payload.Address)
	assert.Equal(t, "https://example.com", payload.Payload.URI)

	registry := newMemoryRegistry()
	require.NoError(t, registry.Register(context.Background(), address, "user@example.com"))

	verifier := NewVerifier(registry, nil, nil)
	verifier.StoreChallenge("s1", payload.Payload)

	result, err := verifier.Verify(context.Background(), "s1", *payload)
	require.NoError(t, err)
	assert.Equal(t, AuthAuthenticated, result.Status)
	assert.Equal(t, address.Hex(), result.Address)
}

func TestLoginNonceStablePerConnect(t *testing.T) {
	ks, err := keystore.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	session := NewSession(WithKeystore(ks))

	_, err = session.Connect(context.Background(), Connection{Provider: KindLocal, ChainID: 1, Password: "pw"}, "")
	require.NoError(t, err)

	first, err := session.Login(context.Background(), "example.com", "")
	require.NoError(t, err)
	second, err := session.Login(context.Background(), "example.com", "")
	require.NoError(t, err)
	assert.Equal(t, first.Payload.Nonce, second.Payload.Nonce, "nonce is assigned once per connect")

	_, err = session.Connect(context.Background(), Connection{Provider: KindLocal, ChainID: 1, Password: "pw"}, "")
	require.NoError(t, err)
	third, err := session.Login(context.Background(), "example.com", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Payload.Nonce, third.Payload.Nonce)
}

func TestExportKeystore(t *testing.T) {
	ks, err := keystore.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	session := NewSession(WithKeystore(ks))

	_, err = session.ExportKeystore("export-pw")
	assert.ErrorIs(t, err, ErrNotConnected)

	address, err := session.Connect(context.Background(), Connection{Provider: KindLocal, ChainID: 1, Password: "pw"}, "")
	require.NoError(t, err)

	exported, err := session.ExportKeystore("export-pw")
	require.NoError(t, err)

	key, err := keystore.Decrypt(exported, "export-pw")
	require.NoError(t, err)
	assert.Equal(t, address, crypto.PubkeyToAddress(key.PublicKey))

	_, err = keystore.Decrypt(exported, "wrong-pw")
	assert.ErrorIs(t, err, keystore.ErrIncorrectPassword)
}

// mockTransport fakes the JSON-RPC side of an injected signer, backed by a
// real key so signatures recover correctly.
type mockTransport struct {
	signer  *sign.LocalSigner
	chainID uint64
	txHash  common.Hash

	lastMethod    string
	lastTypedJSON string
}

func (m *mockTransport) CallContext(_ context.Context, result any, method string, args ...any) error {
	m.lastMethod = method
	switch method {
	case "eth_requestAccounts":
		*(result.(*[]string)) = []string{m.signer.Address().Hex()}
	case "eth_chainId":
		*(result.(*string)) = hexutil.EncodeUint64(m.chainID)
	case "personal_sign":
		message, err := hexutil.Decode(args[0].(string))
		if err != nil {
			return err
		}
		sig, err := m.signer.PersonalSign(message)
		if err != nil {
			return err
		}
		*(result.(*string)) = sig.String()
	case "eth_signTypedData_v4":
		m.lastTypedJSON = args[1].(string)
		sig, err := m.signer.SignHash(make([]byte, 32))
		if err != nil {
			return err
		}
		*(result.(*string)) = sig.String()
	case "eth_sendTransaction":
		*(result.(*string)) = m.txHash.Hex()
	}
	return nil
}

func TestConnectInjected(t *testing.T) {
	transport := &mockTransport{signer: newTestSigner(t), chainID: 137}
	session := NewSession(WithRPCTransport(transport))

	address, err := session.Connect(context.Background(), Connection{Provider: KindInjected, ChainID: 137}, "")
	require.NoError(t, err)
	assert.Equal(t, transport.signer.Address(), address)

	message := []byte("hello from the injected wallet éà世界")
	sig, err := session.SignMessage(context.Background(), message)
	require.NoError(t, err)

	recovered, err := RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, address, recovered)
}

func TestConnectInjectedChainMismatch(t *testing.T) {
	transport := &mockTransport{signer: newTestSigner(t), chainID: 5}
	session := NewSession(WithRPCTransport(transport))

	_, err := session.Connect(context.Background(), Connection{Provider: KindInjected, ChainID: 1}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain")
}

func TestInjectedTypedDataNormalized(t *testing.T) {
	transport := &mockTransport{signer: newTestSigner(t), chainID: 1}
	session := NewSession(WithRPCTransport(transport))

	_, err := session.Connect(context.Background(), Connection{Provider: KindInjected, ChainID: 1}, "")
	require.NoError(t, err)

	_, err = session.SignTypedData(context.Background(), newMailTypedData())
	require.NoError(t, err)

	assert.Equal(t, "eth_signTypedData_v4", transport.lastMethod)
	// The message slot must have been stringified before transmission.
	assert.Contains(t, transport.lastTypedJSON, `"contents":"Hello"`)
	assert.NotContains(t, transport.lastTypedJSON, `"chainId":"1"`, "domain stays untouched")
}

// staticPairer hands back a pre-built transport, standing in for the real
// pairing handshake.
type staticPairer struct {
	transport *mockTransport
}

func (p staticPairer) Pair(_ context.Context, chainID uint64) (RPCTransport, common.Address, error) {
	return p.transport, p.transport.signer.Address(), nil
}

func TestConnectWalletConnect(t *testing.T) {
	transport := &mockTransport{signer: newTestSigner(t), chainID: 137}
	session := NewSession(WithPairer(staticPairer{transport: transport}))

	address, err := session.Connect(context.Background(), Connection{Provider: KindWalletConnect, ChainID: 137}, "")
	require.NoError(t, err)
	assert.Equal(t, transport.signer.Address(), address)

	message := []byte("paired wallet")
	sig, err := session.SignMessage(context.Background(), message)
	require.NoError(t, err)

	recovered, err := RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, address, recovered)

	require.NoError(t, session.Disconnect(context.Background()))
	_, err = session.SignMessage(context.Background(), message)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLoginTimestampsFollowClock(t *testing.T) {
	ks, err := keystore.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := NewSession(WithKeystore(ks), withClock(func() time.Time { return issued }))

	_, err = session.Connect(context.Background(), Connection{Provider: KindLocal, ChainID: 1, Password: "pw"}, "")
	require.NoError(t, err)

	payload, err := session.Login(context.Background(), "example.com", "")
	require.NoError(t, err)

	assert.Equal(t, issued.Format(time.RFC3339), payload.Payload.IssuedAt)
	assert.Equal(t, issued.Add(ChallengeTTL).Format(time.RFC3339), payload.Payload.ExpirationTime)
}

type staticResolver struct {
	account common.Address
}

func (r staticResolver) ResolveAccount(_ context.Context, _ common.Address, _ uint64) (common.Address, error) {
	return r.account, nil
}

func TestConnectSmartAccount(t *testing.T) {
	ks, err := keystore.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	contract := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	session := NewSession(WithKeystore(ks), WithAccountResolver(staticResolver{account: contract}))

	address, err := session.Connect(context.Background(), Connection{
		Provider: KindSmartAccount,
		ChainID:  1,
		Password: "pw",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, contract, address)

	signer, err := session.SignerAddress()
	require.NoError(t, err)
	assert.NotEqual(t, contract, signer, "signer is the controlling key, not the contract")

	// Signatures recover to the controlling key.
	sig, err := session.SignMessage(context.Background(), []byte("delegated"))
	require.NoError(t, err)
	recovered, err := RecoverAddress([]byte("delegated"), sig)
	require.NoError(t, err)
	assert.Equal(t, signer, recovered)
}

func TestExportKeystoreNonLocal(t *testing.T) {
	transport := &mockTransport{signer: newTestSigner(t), chainID: 1}
	session := NewSession(WithRPCTransport(transport))

	_, err := session.Connect(context.Background(), Connection{Provider: KindInjected, ChainID: 1}, "")
	require.NoError(t, err)

	_, err = session.ExportKeystore("pw")
	assert.ErrorIs(t, err, ErrNoLocalAccount)
}

func TestSessionTransferViaInjected(t *testing.T) {
	backend := newMockBackend()
	signer := newTestSigner(t)
	txHash := common.HexToHash("0x1234")
	transport := &mockTransport{signer: signer, chainID: 1, txHash: txHash}

	// Pre-mine the receipt the injected wallet will report.
	backend.receipts[txHash] = &types.Receipt{
		Status:           types.ReceiptStatusSuccessful,
		TxHash:           txHash,
		TransactionIndex: 1,
		GasUsed:          21000,
		BlockHash:        common.HexToHash("0xbeef"),
	}

	session := NewSession(WithRPCTransport(transport), WithChainBackend(backend))
	_, err := session.Connect(context.Background(), Connection{Provider: KindInjected, ChainID: 1}, "")
	require.NoError(t, err)

	result, err := session.Transfer(context.Background(), "0x00000000000000000000000000000000000000aa", decimalOne(), NativeToken)
	require.NoError(t, err)
	assert.Equal(t, TxStatusSuccess, result.Status)
	assert.Equal(t, txHash.Hex(), result.ID)
	assert.Equal(t, "eth_sendTransaction", transport.lastMethod)
}

func TestBalanceWithoutBackend(t *testing.T) {
	ks, err := keystore.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	session := NewSession(WithKeystore(ks))

	_, err = session.Connect(context.Background(), Connection{Provider: KindLocal, ChainID: 1, Password: "pw"}, "")
	require.NoError(t, err)

	_, err = session.Balance(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedOnPlatform)
}

func TestRecoverAddressRejectsShortSignature(t *testing.T) {
	_, err := RecoverAddress([]byte("msg"), []byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "signature") || strings.Contains(err.Error(), "length"))
}

func decimalOne() decimal.Decimal { return decimal.NewFromInt(1) }
