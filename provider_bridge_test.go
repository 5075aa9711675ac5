package walletcore

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc4361/walletcore/pkg/bridge"
	"github.com/erc4361/walletcore/pkg/sign"
)

// startWalletBridge serves the wallet routes off a real local signer and
// returns a connected invoker, imitating a remote bridge process.
func startWalletBridge(t *testing.T, signer *sign.LocalSigner, chainID uint64) *bridge.Client {
	t.Helper()

	node := bridge.NewNode(nil)
	node.Handle(bridge.RouteWalletGetAddress, func(context.Context, []string) (any, error) {
		return signer.Address().Hex(), nil
	})
	node.Handle(bridge.RouteWalletGetChainID, func(context.Context, []string) (any, error) {
		return big.NewInt(int64(chainID)).String(), nil
	})
	node.Handle(bridge.RouteWalletIsConnected, func(context.Context, []string) (any, error) {
		return true, nil
	})
	node.Handle(bridge.RouteWalletSign, func(_ context.Context, args []string) (any, error) {
		sig, err := signer.PersonalSign([]byte(args[0]))
		if err != nil {
			return nil, err
		}
		return sig.String(), nil
	})
	node.Handle(bridge.RouteWalletBalance, func(context.Context, []string) (any, error) {
		return "123456", nil
	})
	node.Handle(bridge.RouteWalletTransfer, func(_ context.Context, args []string) (any, error) {
		return &TransactionResult{
			From:    signer.Address().Hex(),
			To:      args[0],
			GasUsed: "21000",
			ID:      "0x01",
			Status:  TxStatusSuccess,
		}, nil
	})

	server := httptest.NewServer(http.HandlerFunc(node.HandleConnection))
	t.Cleanup(server.Close)

	client := bridge.NewClient(bridge.DefaultClientConfig)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, client.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), func(error) {}))
	return client
}

func TestBridgeProviderConnect(t *testing.T) {
	signer := newTestSigner(t)
	invoker := startWalletBridge(t, signer, 137)

	session := NewSession(WithBridgeInvoker(invoker))
	address, err := session.Connect(context.Background(), Connection{Provider: KindBridge, ChainID: 137}, "")
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), address)
	assert.True(t, session.IsConnected())
}

func TestBridgeProviderChainMismatch(t *testing.T) {
	invoker := startWalletBridge(t, newTestSigner(t), 137)

	session := NewSession(WithBridgeInvoker(invoker))
	_, err := session.Connect(context.Background(), Connection{Provider: KindBridge, ChainID: 1}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain")
}

func TestBridgeProviderSign(t *testing.T) {
	signer := newTestSigner(t)
	invoker := startWalletBridge(t, signer, 1)

	session := NewSession(WithBridgeInvoker(invoker))
	address, err := session.Connect(context.Background(), Connection{Provider: KindBridge, ChainID: 1}, "")
	require.NoError(t, err)

	message := []byte("bridge says hi")
	sig, err := session.SignMessage(context.Background(), message)
	require.NoError(t, err)

	recovered, err := RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, address, recovered)
}

func TestBridgeProviderBalanceAndTransfer(t *testing.T) {
	signer := newTestSigner(t)
	invoker := startWalletBridge(t, signer, 1)

	session := NewSession(WithBridgeInvoker(invoker))
	_, err := session.Connect(context.Background(), Connection{Provider: KindBridge, ChainID: 1}, "")
	require.NoError(t, err)

	balance, err := session.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(123456), balance)

	// The bridge runs the whole transfer; its result passes through
	// unchanged.
	result, err := session.Transfer(context.Background(), "0xaa", decimalOne(), NativeToken)
	require.NoError(t, err)
	assert.Equal(t, TxStatusSuccess, result.Status)
	assert.Equal(t, "0xaa", result.To)
	assert.Equal(t, "0x01", result.ID)
}

func TestBridgeProviderDisconnectedInvoker(t *testing.T) {
	client := bridge.NewClient(bridge.DefaultClientConfig)
	session := NewSession(WithBridgeInvoker(client))

	_, err := session.Connect(context.Background(), Connection{Provider: KindBridge, ChainID: 1}, "")
	assert.Error(t, err)
	assert.False(t, session.IsConnected())
}
