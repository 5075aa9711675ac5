package walletcore

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/erc4361/walletcore/pkg/keystore"
	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

var _ Provider = (*LocalProvider)(nil)

// LocalProvider holds an in-memory private key unlocked from the encrypted
// keystore. It is the only variant that ever sees raw key material.
type LocalProvider struct {
	ks *keystore.Manager
	lg log.Logger

	mu     sync.RWMutex
	signer *sign.LocalSigner
}

// NewLocalProvider creates a disconnected local provider backed by ks.
func NewLocalProvider(ks *keystore.Manager, lg log.Logger) *LocalProvider {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	return &LocalProvider{ks: ks, lg: lg.WithName("local-provider")}
}

// Connect unlocks the keystore (creating it on first use) and loads the key
// into memory.
func (p *LocalProvider) Connect(ctx context.Context, conn Connection, rpcURL string) (common.Address, error) {
	key, err := p.ks.UnlockOrCreate(conn.ChainID, conn.Password, nil)
	if err != nil {
		return common.Address{}, err
	}

	signer := sign.NewLocalSigner(key)
	p.mu.Lock()
	p.signer = signer
	p.mu.Unlock()

	p.lg.Debug("local wallet connected", "address", signer.Address().Hex(), "chainId", conn.ChainID)
	return signer.Address(), nil
}

// Disconnect drops the in-memory key. Idempotent.
func (p *LocalProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.signer = nil
	p.mu.Unlock()
	return nil
}

func (p *LocalProvider) Address() (common.Address, error) {
	return p.SignerAddress()
}

func (p *LocalProvider) SignerAddress() (common.Address, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.signer == nil {
		return common.Address{}, ErrNotConnected
	}
	return p.signer.Address(), nil
}

func (p *LocalProvider) Kind() ProviderKind       { return KindLocal }
func (p *LocalProvider) SignerKind() ProviderKind { return KindLocal }

func (p *LocalProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.signer != nil
}

// LocalAccount exposes the raw signer. Callers must not retain it past
// Disconnect.
func (p *LocalProvider) LocalAccount() *sign.LocalSigner {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.signer
}

func (p *LocalProvider) PersonalSign(ctx context.Context, message []byte) (sign.Signature, error) {
	signer := p.LocalAccount()
	if signer == nil {
		return nil, ErrNotConnected
	}
	return signer.PersonalSign(message)
}

func (p *LocalProvider) SignTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error) {
	signer := p.LocalAccount()
	if signer == nil {
		return nil, ErrNotConnected
	}
	return signer.SignTypedData(td)
}
