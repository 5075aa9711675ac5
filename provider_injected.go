package walletcore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

// remoteAccount is the shared signing half of every externally-held wallet:
// it knows an address and a JSON-RPC transport, never key material.
type remoteAccount struct {
	mu        sync.RWMutex
	transport RPCTransport
	address   common.Address
	connected bool
}

func (r *remoteAccount) set(transport RPCTransport, address common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport = transport
	r.address = address
	r.connected = true
}

func (r *remoteAccount) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport = nil
	r.address = common.Address{}
	r.connected = false
}

func (r *remoteAccount) get() (RPCTransport, common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.connected || r.transport == nil {
		return nil, common.Address{}, ErrNotConnected
	}
	return r.transport, r.address, nil
}

func (r *remoteAccount) isConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected && r.transport != nil
}

// personalSign asks the external signer for an EIP-191 signature over
// message.
func (r *remoteAccount) personalSign(ctx context.Context, message []byte) (sign.Signature, error) {
	transport, address, err := r.get()
	if err != nil {
		return nil, err
	}

	var hexSig string
	if err := transport.CallContext(ctx, &hexSig, "personal_sign", hexutil.Encode(message), address.Hex()); err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "personal_sign: %v", err)
	}
	return sign.ParseSignature(hexSig)
}

// signTypedData serializes the payload, applies the remote-signer
// normalization, and submits it via eth_signTypedData_v4.
func (r *remoteAccount) signTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error) {
	transport, address, err := r.get()
	if err != nil {
		return nil, err
	}

	normalized, err := NormalizedTypedDataJSON(td)
	if err != nil {
		return nil, err
	}

	var hexSig string
	if err := transport.CallContext(ctx, &hexSig, "eth_signTypedData_v4", address.Hex(), normalized); err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "eth_signTypedData_v4: %v", err)
	}
	return sign.ParseSignature(hexSig)
}

// remoteChainID asks the signer which chain it is on. The result is a
// hex-encoded quantity.
func remoteChainID(ctx context.Context, transport RPCTransport) (uint64, error) {
	var hexID string
	if err := transport.CallContext(ctx, &hexID, "eth_chainId"); err != nil {
		return 0, errors.Wrapf(ErrTransportFailure, "eth_chainId: %v", err)
	}
	id, err := hexutil.DecodeUint64(hexID)
	if err != nil {
		return 0, fmt.Errorf("malformed eth_chainId result %q: %w", hexID, err)
	}
	return id, nil
}

// sendTransactionHash submits a transaction through the external wallet and
// returns the transaction hash. The wallet does its own signing.
func (r *remoteAccount) sendTransactionHash(ctx context.Context, req *TransactionRequest) (common.Hash, error) {
	transport, address, err := r.get()
	if err != nil {
		return common.Hash{}, err
	}

	call := map[string]any{
		"from": address.Hex(),
		"to":   req.To,
	}
	if req.Data != "" {
		call["data"] = req.Data
	}
	if req.Value != nil {
		call["value"] = hexutil.EncodeBig(req.Value)
	}
	if req.GasLimit > 0 {
		call["gas"] = hexutil.EncodeUint64(req.GasLimit)
	}
	if req.GasPrice != nil {
		call["gasPrice"] = hexutil.EncodeBig(req.GasPrice)
	}

	var hexHash string
	if err := transport.CallContext(ctx, &hexHash, "eth_sendTransaction", call); err != nil {
		return common.Hash{}, errors.Wrapf(ErrTransportFailure, "eth_sendTransaction: %v", err)
	}
	return common.HexToHash(hexHash), nil
}

var (
	_ Provider   = (*InjectedProvider)(nil)
	_ hashSender = (*InjectedProvider)(nil)
)

// InjectedProvider drives a browser-injected EIP-1193 signer. The provider
// owns an address and a request channel, never key material.
type InjectedProvider struct {
	account remoteAccount
	lg      log.Logger
}

// NewInjectedProvider creates a disconnected injected provider. The
// transport is attached at Connect time.
func NewInjectedProvider(transport RPCTransport, lg log.Logger) *InjectedProvider {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	p := &InjectedProvider{lg: lg.WithName("injected-provider")}
	p.account.transport = transport
	return p
}

// Connect requests accounts from the injected signer and verifies the chain.
func (p *InjectedProvider) Connect(ctx context.Context, conn Connection, rpcURL string) (common.Address, error) {
	p.account.mu.RLock()
	transport := p.account.transport
	p.account.mu.RUnlock()
	if transport == nil {
		return common.Address{}, ErrUnsupportedOnPlatform
	}

	var accounts []string
	if err := transport.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return common.Address{}, errors.Wrapf(ErrTransportFailure, "eth_requestAccounts: %v", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, errors.New("injected signer exposed no accounts")
	}

	chainID, err := remoteChainID(ctx, transport)
	if err != nil {
		return common.Address{}, err
	}
	if chainID != conn.ChainID {
		return common.Address{}, fmt.Errorf("injected signer is on chain %d, expected %d", chainID, conn.ChainID)
	}

	address := common.HexToAddress(accounts[0])
	p.account.set(transport, address)
	p.lg.Debug("injected wallet connected", "address", address.Hex(), "chainId", chainID)
	return address, nil
}

func (p *InjectedProvider) Disconnect(ctx context.Context) error {
	p.account.mu.Lock()
	// Keep the transport so the provider can reconnect; drop the account.
	p.account.address = common.Address{}
	p.account.connected = false
	p.account.mu.Unlock()
	return nil
}

func (p *InjectedProvider) Address() (common.Address, error) {
	_, address, err := p.account.get()
	return address, err
}

func (p *InjectedProvider) SignerAddress() (common.Address, error) { return p.Address() }

func (p *InjectedProvider) Kind() ProviderKind       { return KindInjected }
func (p *InjectedProvider) SignerKind() ProviderKind { return KindInjected }

func (p *InjectedProvider) IsConnected() bool { return p.account.isConnected() }

func (p *InjectedProvider) LocalAccount() *sign.LocalSigner { return nil }

func (p *InjectedProvider) PersonalSign(ctx context.Context, message []byte) (sign.Signature, error) {
	return p.account.personalSign(ctx, message)
}

func (p *InjectedProvider) SignTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error) {
	return p.account.signTypedData(ctx, td)
}

// SendTransactionHash lets the dispatcher submit transactions through the
// injected wallet.
func (p *InjectedProvider) SendTransactionHash(ctx context.Context, req *TransactionRequest) (common.Hash, error) {
	return p.account.sendTransactionHash(ctx, req)
}
