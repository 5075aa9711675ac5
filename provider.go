package walletcore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/erc4361/walletcore/pkg/sign"
)

// Provider is the capability contract every wallet variant implements.
// A provider is activated by Connect and released by Disconnect; calling any
// other capability while disconnected fails with ErrNotConnected. Operations
// are re-entrant-safe at the call level; the Session guarantees at most one
// active provider instance.
type Provider interface {
	// Connect establishes the account and returns its address. For the
	// local variant this unlocks or creates the keystore; external
	// variants perform their own handshake.
	Connect(ctx context.Context, conn Connection, rpcURL string) (common.Address, error)

	// Disconnect releases held resources (key material for the local
	// variant). Idempotent.
	Disconnect(ctx context.Context) error

	// Address returns the account address.
	Address() (common.Address, error)

	// SignerAddress returns the address that actually produces signatures.
	// It differs from Address only for smart accounts, where the account
	// is a contract and the signer is the controlling key.
	SignerAddress() (common.Address, error)

	// Kind reports the provider variant.
	Kind() ProviderKind

	// SignerKind reports the variant that performs signing. Used to select
	// the typed-data signing path.
	SignerKind() ProviderKind

	// IsConnected reports connectivity. It never fails outward: any
	// internal failure reads as false.
	IsConnected() bool

	// LocalAccount returns the raw local signer, or nil for every variant
	// except local. Absence is not an error.
	LocalAccount() *sign.LocalSigner

	// PersonalSign signs a message with the EIP-191 personal prefix.
	PersonalSign(ctx context.Context, message []byte) (sign.Signature, error)

	// SignTypedData signs an EIP-712 payload.
	SignTypedData(ctx context.Context, td apitypes.TypedData) (sign.Signature, error)
}

// RPCTransport is the JSON-RPC surface an injected or paired wallet exposes.
// go-ethereum's rpc.Client satisfies it.
type RPCTransport interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

var _ RPCTransport = (*gethrpc.Client)(nil)

// Pairer performs the WalletConnect-style pairing handshake. The concrete
// protocol is opaque to the core; the pairer hands back a signing transport
// and the paired account.
type Pairer interface {
	Pair(ctx context.Context, chainID uint64) (RPCTransport, common.Address, error)
}

// AccountResolver maps a controlling signer key to its smart-account
// address, typically by querying an account factory contract.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, signer common.Address, chainID uint64) (common.Address, error)
}
