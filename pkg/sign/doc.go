// Package sign implements the low-level Ethereum signing primitives used by
// walletcore: raw keccak signatures, EIP-191 personal-message signatures,
// EIP-712 typed-data signatures, and ECDSA address recovery.
//
// Signatures are 65 bytes (r || s || v) with v normalized to 27/28 on the
// wire, the convention every Ethereum wallet expects. Recovery converts v
// back to 0/1 before handing it to go-ethereum.
package sign
