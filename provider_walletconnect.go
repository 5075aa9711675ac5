package walletcore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

var (
	_ Provider   = (*WalletConnectProvider)(nil)
	_ hashSender = (*WalletConnectProvider)(nil)
)

// WalletConnectProvider reaches an external wallet paired through a
// WalletConnect-style session. The pairing handshake itself is opaque to the
// core and delegated to the Pairer; once paired, signing goes over the same
// JSON-RPC surface as the injected variant.
type WalletConnectProvider struct {
	pairer  Pairer
	account remoteAccount
	lg      log.Logger
}

// NewWalletConnectProvider creates a disconnected provider that pairs via
// pairer at Connect time.
func NewWalletConnectProvider(pairer Pairer, lg log.Logger) *WalletConnectProvider {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	return &WalletConnectProvider{pairer: pairer, lg: lg.WithName("walletconnect-provider")}
}

// Connect runs the pairing handshake and adopts the returned transport and
// account.
func (p *WalletConnectProvider) Connect(ctx context.Context, conn Connection, rpcURL string) (common.Address, error) {
	if p.pairer == nil {
		return common.Address{}, ErrUnsupportedOnPlatform
	}

	transport, address, err := p.pairer.Pair(ctx, conn.ChainID)
	if err != nil {
		return common.Address{}, err
	}

	p.account.set(transport, address)
	p.lg.Debug("walletconnect session established", "address", address.Hex(), "chainId", conn.ChainID)
	return address, nil
}

func (p *WalletConnectProvider) Disconnect(ctx context.Context) error {
	p.account.clear()
	return nil
}

func (p *WalletConnectProvider) Address() (common.Address, error) {
	_, address, err := p.account.get()
	return address, err
}

func (p *WalletConnectProvider) SignerAddress() (common.Address, error) { return p.Address() }

func (p *WalletConnectProvider) Kind() ProviderKind       { return KindWalletConnect }
func (p *WalletConnectProvider) SignerKind() ProviderKind { return KindWalletConnect }

func (p *WalletConnectProvider) IsConnected() bool { return p.account.isConnected() }

func (p *WalletConnectProvider) LocalAccount() *sign.LocalSigner { return nil }

func (p *WalletConnectProvider) PersonalSign(ctx context.Context, message []byte) (sign.Signature, error) {
	return p.account.personalSign(ctx, message)
}

func (p *WalletConnectProvider) SignTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error) {
	return p.account.signTypedData(ctx, td)
}

// SendTransactionHash submits a transaction through the paired wallet.
func (p *WalletConnectProvider) SendTransactionHash(ctx context.Context, req *TransactionRequest) (common.Hash, error) {
	return p.account.sendTransactionHash(ctx, req)
}
