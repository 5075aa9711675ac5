package walletcore

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

var _ Provider = (*SmartAccountProvider)(nil)

// SmartAccountProvider is a delegated smart account: the account address is
// a contract, and signatures come from a nested personal wallet. Only here
// do Address and SignerAddress differ.
type SmartAccountProvider struct {
	personal Provider
	resolver AccountResolver
	lg       log.Logger

	mu        sync.RWMutex
	account   common.Address
	connected bool
}

// NewSmartAccountProvider wraps the nested personal provider. The resolver
// maps the controlling key to the deployed (or counterfactual) account
// address.
func NewSmartAccountProvider(personal Provider, resolver AccountResolver, lg log.Logger) *SmartAccountProvider {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	return &SmartAccountProvider{
		personal: personal,
		resolver: resolver,
		lg:       lg.WithName("smart-account-provider"),
	}
}

// Connect first connects the personal wallet, then resolves the smart
// account controlled by its signer.
func (p *SmartAccountProvider) Connect(ctx context.Context, conn Connection, rpcURL string) (common.Address, error) {
	if p.personal == nil || p.resolver == nil {
		return common.Address{}, ErrUnsupportedOnPlatform
	}

	personalConn := conn
	personalConn.Provider = conn.PersonalWallet
	if personalConn.Provider == "" {
		personalConn.Provider = KindLocal
	}
	personalConn.PersonalWallet = ""

	if _, err := p.personal.Connect(ctx, personalConn, rpcURL); err != nil {
		return common.Address{}, err
	}

	signer, err := p.personal.SignerAddress()
	if err != nil {
		return common.Address{}, err
	}

	account, err := p.resolver.ResolveAccount(ctx, signer, conn.ChainID)
	if err != nil {
		// Roll back the personal connection so the provider is not left
		// half-connected.
		_ = p.personal.Disconnect(ctx)
		return common.Address{}, err
	}

	p.mu.Lock()
	p.account = account
	p.connected = true
	p.mu.Unlock()

	p.lg.Debug("smart account connected",
		"account", account.Hex(),
		"signer", signer.Hex(),
		"chainId", conn.ChainID)
	return account, nil
}

func (p *SmartAccountProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.account = common.Address{}
	p.connected = false
	p.mu.Unlock()

	if p.personal != nil {
		return p.personal.Disconnect(ctx)
	}
	return nil
}

// Address returns the smart-account (contract) address.
func (p *SmartAccountProvider) Address() (common.Address, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.connected {
		return common.Address{}, ErrNotConnected
	}
	return p.account, nil
}

// SignerAddress returns the controlling key's address, which is what every
// signature recovers to.
func (p *SmartAccountProvider) SignerAddress() (common.Address, error) {
	if !p.IsConnected() {
		return common.Address{}, ErrNotConnected
	}
	return p.personal.SignerAddress()
}

func (p *SmartAccountProvider) Kind() ProviderKind { return KindSmartAccount }

// SignerKind reports the nested wallet's kind so the signing subsystem
// picks the right typed-data path.
func (p *SmartAccountProvider) SignerKind() ProviderKind {
	if p.personal == nil {
		return KindSmartAccount
	}
	return p.personal.SignerKind()
}

func (p *SmartAccountProvider) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.personal != nil && p.personal.IsConnected()
}

func (p *SmartAccountProvider) LocalAccount() *sign.LocalSigner {
	if p.personal == nil {
		return nil
	}
	return p.personal.LocalAccount()
}

func (p *SmartAccountProvider) PersonalSign(ctx context.Context, message []byte) (sign.Signature, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}
	return p.personal.PersonalSign(ctx, message)
}

func (p *SmartAccountProvider) SignTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}
	return p.personal.SignTypedData(ctx, td)
}
