package walletcore

import (
	"context"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/erc4361/walletcore/pkg/bridge"
	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

var (
	_ Provider         = (*BridgeProvider)(nil)
	_ resultTransferor = (*BridgeProvider)(nil)
)

// BridgeProvider proxies every wallet capability to a remote bridge process
// over the route-invocation IPC surface. The bridge holds the actual signer;
// this provider holds only an address and a request channel.
type BridgeProvider struct {
	invoker bridge.Invoker
	lg      log.Logger

	mu        sync.RWMutex
	address   common.Address
	connected bool
}

// NewBridgeProvider creates a provider over an established invoker.
func NewBridgeProvider(invoker bridge.Invoker, lg log.Logger) *BridgeProvider {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	return &BridgeProvider{invoker: invoker, lg: lg.WithName("bridge-provider")}
}

// Connect asks the bridge for its account and verifies it serves the
// requested chain.
func (p *BridgeProvider) Connect(ctx context.Context, conn Connection, rpcURL string) (common.Address, error) {
	if p.invoker == nil {
		return common.Address{}, ErrUnsupportedOnPlatform
	}

	var addrHex string
	res, err := p.invoker.Invoke(ctx, bridge.RouteWalletGetAddress)
	if err != nil {
		return common.Address{}, errors.Wrapf(ErrTransportFailure, "bridge getAddress: %v", err)
	}
	if err := res.DecodeResult(&addrHex); err != nil {
		return common.Address{}, err
	}

	var chainIDStr string
	res, err = p.invoker.Invoke(ctx, bridge.RouteWalletGetChainID)
	if err != nil {
		return common.Address{}, errors.Wrapf(ErrTransportFailure, "bridge getChainId: %v", err)
	}
	if err := res.DecodeResult(&chainIDStr); err != nil {
		return common.Address{}, err
	}
	chainID, err := strconv.ParseUint(chainIDStr, 10, 64)
	if err != nil {
		return common.Address{}, errors.Errorf("malformed bridge chain id %q", chainIDStr)
	}
	if chainID != conn.ChainID {
		return common.Address{}, errors.Errorf("bridge serves chain %d, expected %d", chainID, conn.ChainID)
	}

	address := common.HexToAddress(addrHex)
	p.mu.Lock()
	p.address = address
	p.connected = true
	p.mu.Unlock()

	p.lg.Debug("bridge wallet connected", "address", address.Hex(), "chainId", chainID)
	return address, nil
}

func (p *BridgeProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.address = common.Address{}
	p.connected = false
	p.mu.Unlock()
	return nil
}

func (p *BridgeProvider) Address() (common.Address, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.connected {
		return common.Address{}, ErrNotConnected
	}
	return p.address, nil
}

func (p *BridgeProvider) SignerAddress() (common.Address, error) { return p.Address() }

func (p *BridgeProvider) Kind() ProviderKind       { return KindBridge }
func (p *BridgeProvider) SignerKind() ProviderKind { return KindBridge }

// IsConnected never fails outward: transport errors read as false.
func (p *BridgeProvider) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	if !connected || p.invoker == nil || !p.invoker.IsConnected() {
		return false
	}

	res, err := p.invoker.Invoke(context.Background(), bridge.RouteWalletIsConnected)
	if err != nil {
		return false
	}
	var remote bool
	if err := res.DecodeResult(&remote); err != nil {
		return false
	}
	return remote
}

func (p *BridgeProvider) LocalAccount() *sign.LocalSigner { return nil }

func (p *BridgeProvider) PersonalSign(ctx context.Context, message []byte) (sign.Signature, error) {
	if _, err := p.Address(); err != nil {
		return nil, err
	}
	res, err := p.invoker.Invoke(ctx, bridge.RouteWalletSign, string(message))
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "bridge sign: %v", err)
	}
	var hexSig string
	if err := res.DecodeResult(&hexSig); err != nil {
		return nil, err
	}
	return sign.ParseSignature(hexSig)
}

func (p *BridgeProvider) SignTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error) {
	address, err := p.Address()
	if err != nil {
		return nil, err
	}

	normalized, err := NormalizedTypedDataJSON(td)
	if err != nil {
		return nil, err
	}

	res, err := p.invoker.Invoke(ctx, bridge.RouteWalletSignTypedData, address.Hex(), normalized)
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "bridge signTypedData: %v", err)
	}
	var hexSig string
	if err := res.DecodeResult(&hexSig); err != nil {
		return nil, err
	}
	return sign.ParseSignature(hexSig)
}

// Balance reads the account balance through the bridge.
func (p *BridgeProvider) Balance(ctx context.Context) (*big.Int, error) {
	if _, err := p.Address(); err != nil {
		return nil, err
	}
	res, err := p.invoker.Invoke(ctx, bridge.RouteWalletBalance)
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "bridge balance: %v", err)
	}
	var balanceStr string
	if err := res.DecodeResult(&balanceStr); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(balanceStr, 10)
	if !ok {
		return nil, errors.Errorf("malformed bridge balance %q", balanceStr)
	}
	return balance, nil
}

// TransferNative performs the whole transfer round trip on the bridge side
// and returns its normalized result unchanged.
func (p *BridgeProvider) TransferNative(ctx context.Context, to string, amountWei *big.Int) (*TransactionResult, error) {
	if _, err := p.Address(); err != nil {
		return nil, err
	}
	res, err := p.invoker.Invoke(ctx, bridge.RouteWalletTransfer, to, amountWei.String())
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "bridge transfer: %v", err)
	}
	var result TransactionResult
	if err := res.DecodeResult(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendRawTransaction submits an explicit transaction through the bridge.
func (p *BridgeProvider) SendRawTransaction(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	if _, err := p.Address(); err != nil {
		return nil, err
	}
	res, err := p.invoker.Invoke(ctx, bridge.RouteWalletSendRawTx, req)
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "bridge sendRawTransaction: %v", err)
	}
	var result TransactionResult
	if err := res.DecodeResult(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
