package walletcore

import (
	"github.com/pkg/errors"

	"github.com/erc4361/walletcore/pkg/keystore"
)

// Sentinel errors for the wallet core. Authentication verification outcomes
// are deliberately not here: they are data (AuthResult), because callers
// must branch on all four cases programmatically.
var (
	// ErrNotConnected is returned when an operation requires an active
	// provider and none is connected.
	ErrNotConnected = errors.New("wallet: not connected")

	// ErrNoLocalAccount is returned by local-only operations (keystore
	// export, raw key access) when the active provider is not the
	// local-key variant.
	ErrNoLocalAccount = errors.New("wallet: active provider has no local account")

	// ErrIncorrectPassword is returned when an existing keystore cannot be
	// decrypted with the supplied password.
	ErrIncorrectPassword = keystore.ErrIncorrectPassword

	// ErrUnsupportedOnPlatform is returned when a capability is not wired
	// for the current deployment's provider set, e.g. a walletconnect
	// connection without a pairer.
	ErrUnsupportedOnPlatform = errors.New("wallet: operation not supported by the current provider set")

	// ErrTransportFailure wraps network or file I/O failures underneath
	// any wallet operation.
	ErrTransportFailure = errors.New("wallet: transport failure")
)
