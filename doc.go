// Package walletcore unifies local encrypted keys, browser-injected
// signers, WalletConnect pairings, delegated smart accounts, and remote
// bridge processes behind one wallet capability contract.
//
// A Session owns exactly one active provider at a time and exposes the
// higher-level operations on top of it: EIP-191 personal-message signing,
// EIP-712 typed-data signing with the remote-signer normalization,
// Sign-In-With-Ethereum challenge issuance and verification, and native
// value transfers that block until a receipt is observed.
package walletcore
