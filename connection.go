package walletcore

import (
	"github.com/go-playground/validator/v10"
)

// ProviderKind identifies a wallet provider variant.
type ProviderKind string

const (
	// KindLocal is an in-process account backed by the encrypted keystore.
	KindLocal ProviderKind = "local"
	// KindInjected is a browser-injected EIP-1193 signer.
	KindInjected ProviderKind = "injected"
	// KindWalletConnect is an external wallet paired over WalletConnect.
	KindWalletConnect ProviderKind = "walletconnect"
	// KindSmartAccount is a delegated smart account controlled by a nested
	// personal wallet.
	KindSmartAccount ProviderKind = "smart-account"
	// KindBridge is a remote bridge process invoked by route name.
	KindBridge ProviderKind = "bridge"
)

// Connection is the immutable configuration passed to Session.Connect.
type Connection struct {
	// Provider selects the wallet variant to activate.
	Provider ProviderKind `json:"provider" validate:"required,oneof=local injected walletconnect smart-account bridge"`
	// ChainID is the target chain.
	ChainID uint64 `json:"chainId" validate:"required"`
	// Password unlocks (or creates) the local keystore. Optional; an empty
	// password falls back to a device-stable identifier.
	Password string `json:"password,omitempty"`
	// Email is an optional identity hint forwarded to identity-linked
	// providers and the user registry.
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	// PersonalWallet names the nested wallet kind controlling a smart
	// account. Only meaningful when Provider is smart-account.
	PersonalWallet ProviderKind `json:"personalWallet,omitempty" validate:"omitempty,oneof=local injected walletconnect bridge"`
}

var connectionValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the connection for structural problems before any
// handshake is attempted.
func (c Connection) Validate() error {
	return connectionValidator.Struct(c)
}
