package walletcore

import (
	"fmt"
	"strings"
	"time"

	"github.com/erc4361/walletcore/pkg/sign"
)

// ChallengeVersion is the fixed sign-in message version.
const ChallengeVersion = "1"

// ChallengeTTL is the validity window of a login challenge.
const ChallengeTTL = 5 * time.Minute

// DefaultStatement is used when the caller supplies no statement.
const DefaultStatement = "Please ensure that the domain above matches the URL of the current website."

// challengeTimeLayout is the timestamp encoding used in rendered challenges.
// RFC3339 keeps the rendered text reproducible byte-for-byte on both sides.
const challengeTimeLayout = time.RFC3339

// Challenge is a sign-in-with-Ethereum login challenge. All fields are kept
// as transport-ready strings so that a payload round-trips unchanged between
// the initiator and the verifier; the rendered text form, not this struct,
// is what gets signed.
type Challenge struct {
	Domain         string   `json:"domain" validate:"required"`
	Address        string   `json:"address" validate:"required"`
	Statement      string   `json:"statement"`
	URI            string   `json:"uri" validate:"required"`
	Version        string   `json:"version" validate:"required,eq=1"`
	ChainID        uint64   `json:"chain_id" validate:"required"`
	Nonce          string   `json:"nonce" validate:"required,min=8"`
	IssuedAt       string   `json:"issued_at" validate:"required"`
	ExpirationTime string   `json:"expiration_time" validate:"required"`
	NotBefore      string   `json:"invalid_before" validate:"required"`
	Resources      []string `json:"resources"`
}

// NewChallenge builds a challenge issued at now, expiring after
// ChallengeTTL, valid from now, with an empty resource list.
func NewChallenge(domain, address, statement, uri string, chainID uint64, nonce string, now time.Time) Challenge {
	now = now.UTC().Truncate(time.Second)
	if statement == "" {
		statement = DefaultStatement
	}
	return Challenge{
		Domain:         domain,
		Address:        address,
		Statement:      statement,
		URI:            uri,
		Version:        ChallengeVersion,
		ChainID:        chainID,
		Nonce:          nonce,
		IssuedAt:       now.Format(challengeTimeLayout),
		ExpirationTime: now.Add(ChallengeTTL).Format(challengeTimeLayout),
		NotBefore:      now.Format(challengeTimeLayout),
		Resources:      []string{},
	}
}

// Render produces the canonical multi-line text form of the challenge. This
// exact text is signed and must be reproduced byte-for-byte by the verifier.
func (c Challenge) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n%s\n\n", c.Domain, c.Address)
	if c.Statement != "" {
		fmt.Fprintf(&b, "%s\n\n", c.Statement)
	}
	fmt.Fprintf(&b, "URI: %s\n", c.URI)
	fmt.Fprintf(&b, "Version: %s\n", c.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", c.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", c.Nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", c.IssuedAt)
	fmt.Fprintf(&b, "Expiration Time: %s\n", c.ExpirationTime)
	fmt.Fprintf(&b, "Not Before: %s", c.NotBefore)
	if len(c.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range c.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String()
}

// Window returns the parsed [notBefore, expiration) validity bounds.
func (c Challenge) Window() (notBefore, expiration time.Time, err error) {
	notBefore, err = time.Parse(challengeTimeLayout, c.NotBefore)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid not-before timestamp: %w", err)
	}
	expiration, err = time.Parse(challengeTimeLayout, c.ExpirationTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid expiration timestamp: %w", err)
	}
	return notBefore, expiration, nil
}

// Equal reports whether two challenges match field for field, nonce
// included. Resource order matters.
func (c Challenge) Equal(other Challenge) bool {
	if c.Domain != other.Domain ||
		c.Address != other.Address ||
		c.Statement != other.Statement ||
		c.URI != other.URI ||
		c.Version != other.Version ||
		c.ChainID != other.ChainID ||
		c.Nonce != other.Nonce ||
		c.IssuedAt != other.IssuedAt ||
		c.ExpirationTime != other.ExpirationTime ||
		c.NotBefore != other.NotBefore ||
		len(c.Resources) != len(other.Resources) {
		return false
	}
	for i := range c.Resources {
		if c.Resources[i] != other.Resources[i] {
			return false
		}
	}
	return true
}

// LoginPayload bundles a signature with the challenge fields flattened for
// transport. Every field set at signing time must round-trip unchanged for
// verification to succeed.
type LoginPayload struct {
	Signature sign.Signature `json:"signature" validate:"required"`
	Payload   Challenge      `json:"payload" validate:"required"`
}

// Validate checks the payload for structural completeness.
func (lp LoginPayload) Validate() error {
	return connectionValidator.Struct(lp)
}
