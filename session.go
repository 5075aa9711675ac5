package walletcore

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"

	"github.com/erc4361/walletcore/pkg/bridge"
	"github.com/erc4361/walletcore/pkg/keystore"
	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

// NonceFunc overrides pending-nonce discovery for locally-signed
// transactions.
type NonceFunc func(ctx context.Context, account common.Address) (uint64, error)

// Session owns at most one active wallet provider plus the chain and RPC
// configuration around it. Every higher-level operation reads the active
// provider through the session; there is no package-level default.
//
// Concurrent Connect calls on the same session are not serialized here.
// Callers that race Connect get whichever provider wins; everything else is
// safe because the provider is swapped wholesale, never mutated in place.
type Session struct {
	ks       *keystore.Manager
	rpc      RPCTransport
	pairer   Pairer
	invoker  bridge.Invoker
	resolver AccountResolver
	backend  ChainBackend
	tokens   TokenTransferor
	nonceFn  NonceFunc
	now      func() time.Time
	lg       log.Logger

	mu         sync.RWMutex
	provider   Provider
	chainID    uint64
	rpcURL     string
	loginNonce string
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithKeystore backs the local provider variant with ks.
func WithKeystore(ks *keystore.Manager) SessionOption {
	return func(s *Session) { s.ks = ks }
}

// WithRPCTransport supplies the JSON-RPC channel used by the injected
// variant.
func WithRPCTransport(rpc RPCTransport) SessionOption {
	return func(s *Session) { s.rpc = rpc }
}

// WithPairer supplies the WalletConnect pairing handshake.
func WithPairer(pairer Pairer) SessionOption {
	return func(s *Session) { s.pairer = pairer }
}

// WithBridgeInvoker supplies the IPC channel used by the bridge variant.
func WithBridgeInvoker(invoker bridge.Invoker) SessionOption {
	return func(s *Session) { s.invoker = invoker }
}

// WithAccountResolver supplies the smart-account address resolver.
func WithAccountResolver(resolver AccountResolver) SessionOption {
	return func(s *Session) { s.resolver = resolver }
}

// WithChainBackend supplies the node used for submission, receipts, and
// balances.
func WithChainBackend(backend ChainBackend) SessionOption {
	return func(s *Session) { s.backend = backend }
}

// WithTokenTransferor plugs in the ERC-20 transfer collaborator.
func WithTokenTransferor(tokens TokenTransferor) SessionOption {
	return func(s *Session) { s.tokens = tokens }
}

// WithNonceFunc overrides nonce discovery for locally-signed transactions.
func WithNonceFunc(fn NonceFunc) SessionOption {
	return func(s *Session) { s.nonceFn = fn }
}

// WithLogger sets the session logger.
func WithLogger(lg log.Logger) SessionOption {
	return func(s *Session) { s.lg = lg }
}

// withClock is used by tests to pin challenge timestamps.
func withClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession builds a session. Which provider kinds it can serve depends on
// which collaborators were supplied; connecting a kind whose collaborator is
// missing fails with ErrUnsupportedOnPlatform.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{now: time.Now, lg: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.lg = s.lg.WithName("wallet-session")
	return s
}

// Connect establishes the account described by conn, replacing any previous
// provider. The old provider is disconnected before the new one becomes
// visible.
func (s *Session) Connect(ctx context.Context, conn Connection, rpcURL string) (common.Address, error) {
	if err := conn.Validate(); err != nil {
		return common.Address{}, err
	}

	provider, err := s.buildProvider(conn)
	if err != nil {
		return common.Address{}, err
	}

	s.mu.Lock()
	old := s.provider
	s.provider = nil
	s.mu.Unlock()
	if old != nil {
		_ = old.Disconnect(ctx)
	}

	address, err := provider.Connect(ctx, conn, rpcURL)
	if err != nil {
		return common.Address{}, err
	}

	s.mu.Lock()
	s.provider = provider
	s.chainID = conn.ChainID
	s.rpcURL = rpcURL
	s.loginNonce = uuid.NewString()
	s.mu.Unlock()

	s.lg.Info("wallet connected",
		"kind", string(conn.Provider),
		"address", address.Hex(),
		"chainId", conn.ChainID)
	return address, nil
}

func (s *Session) buildProvider(conn Connection) (Provider, error) {
	switch conn.Provider {
	case KindLocal:
		if s.ks == nil {
			return nil, ErrUnsupportedOnPlatform
		}
		return NewLocalProvider(s.ks, s.lg), nil
	case KindInjected:
		if s.rpc == nil {
			return nil, ErrUnsupportedOnPlatform
		}
		return NewInjectedProvider(s.rpc, s.lg), nil
	case KindWalletConnect:
		if s.pairer == nil {
			return nil, ErrUnsupportedOnPlatform
		}
		return NewWalletConnectProvider(s.pairer, s.lg), nil
	case KindSmartAccount:
		if s.resolver == nil {
			return nil, ErrUnsupportedOnPlatform
		}
		nestedKind := conn.PersonalWallet
		if nestedKind == "" {
			nestedKind = KindLocal
		}
		if nestedKind == KindSmartAccount {
			return nil, ErrUnsupportedOnPlatform
		}
		nestedConn := conn
		nestedConn.Provider = nestedKind
		nestedConn.PersonalWallet = ""
		personal, err := s.buildProvider(nestedConn)
		if err != nil {
			return nil, err
		}
		return NewSmartAccountProvider(personal, s.resolver, s.lg), nil
	case KindBridge:
		if s.invoker == nil {
			return nil, ErrUnsupportedOnPlatform
		}
		return NewBridgeProvider(s.invoker, s.lg), nil
	default:
		return nil, ErrUnsupportedOnPlatform
	}
}

// Disconnect releases the active provider. Idempotent.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	provider := s.provider
	s.provider = nil
	s.loginNonce = ""
	s.mu.Unlock()

	if provider == nil {
		return nil
	}
	return provider.Disconnect(ctx)
}

func (s *Session) connectedProvider() (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return nil, ErrNotConnected
	}
	return s.provider, nil
}

// Address returns the active account address.
func (s *Session) Address() (common.Address, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return common.Address{}, err
	}
	return provider.Address()
}

// SignerAddress returns the address signatures recover to, which differs
// from Address only for delegated smart accounts.
func (s *Session) SignerAddress() (common.Address, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return common.Address{}, err
	}
	return provider.SignerAddress()
}

// ChainID reports the chain configured at Connect time.
func (s *Session) ChainID() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return 0, ErrNotConnected
	}
	return s.chainID, nil
}

// IsConnected never fails: any internal error reads as false.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	provider := s.provider
	s.mu.RUnlock()
	return provider != nil && provider.IsConnected()
}

// SignMessage signs message with the active provider's personal-message
// primitive.
func (s *Session) SignMessage(ctx context.Context, message []byte) (sign.Signature, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil, err
	}
	return provider.PersonalSign(ctx, message)
}

// SignTypedData signs an EIP-712 payload. The local-key path signs the
// structured encoding directly; remote signers receive the normalized JSON.
// That branch lives inside each provider's SignTypedData.
func (s *Session) SignTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil, err
	}
	return provider.SignTypedData(ctx, td)
}

// RecoverAddress recovers the signer of a personal-message signature. Pure
// function, no session state involved.
func RecoverAddress(message []byte, sig sign.Signature) (common.Address, error) {
	return sign.RecoverPersonal(message, sig)
}

// Login builds and signs a fresh sign-in challenge for domain, returning
// the payload the verifier side consumes. The nonce is the session's
// single-use login nonce assigned at Connect.
func (s *Session) Login(ctx context.Context, domain, uri string) (*LoginPayload, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil, err
	}

	signer, err := provider.SignerAddress()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	chainID := s.chainID
	nonce := s.loginNonce
	s.mu.RUnlock()

	if uri == "" {
		uri = "https://" + domain
	}
	challenge := NewChallenge(domain, signer.Hex(), DefaultStatement, uri, chainID, nonce, s.now())

	signature, err := provider.PersonalSign(ctx, []byte(challenge.Render()))
	if err != nil {
		return nil, err
	}

	s.lg.Debug("login challenge signed", "domain", domain, "address", signer.Hex(), "nonce", nonce)
	return &LoginPayload{Signature: signature, Payload: challenge}, nil
}

// LoginNonce exposes the session's current single-use nonce so a verifier
// colocated with the initiator can store the expected challenge.
func (s *Session) LoginNonce() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return "", ErrNotConnected
	}
	return s.loginNonce, nil
}

// ExportKeystore re-encrypts the in-memory key under password and returns
// the serialized keystore document. Only the local variant can export.
func (s *Session) ExportKeystore(password string) ([]byte, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil, err
	}

	signer := provider.LocalAccount()
	if signer == nil {
		return nil, ErrNoLocalAccount
	}
	return keystore.Encrypt(signer.PrivateKey(), password)
}

// ExportSigningKey returns the in-memory private key when the active
// provider is local, nil otherwise. Callers must not retain it past
// Disconnect.
func (s *Session) ExportSigningKey() *ecdsa.PrivateKey {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil
	}
	signer := provider.LocalAccount()
	if signer == nil {
		return nil
	}
	return signer.PrivateKey()
}

// DeleteKeystore removes the persisted keystore file. Never fails outward.
func (s *Session) DeleteKeystore() bool {
	if s.ks == nil {
		return false
	}
	return s.ks.Delete()
}

// Balance reads the active account's native balance.
func (s *Session) Balance(ctx context.Context) (*big.Int, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil, err
	}

	// The bridge holds its own node connection; everyone else reads through
	// the session's backend.
	if bp, ok := provider.(*BridgeProvider); ok {
		return bp.Balance(ctx)
	}

	if s.backend == nil {
		return nil, ErrUnsupportedOnPlatform
	}
	address, err := provider.Address()
	if err != nil {
		return nil, err
	}
	return s.backend.BalanceAt(ctx, address, nil)
}
