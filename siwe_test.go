package walletcore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChallenge(t *testing.T) {
	issued := time.Date(2025, 3, 14, 9, 26, 53, 987654321, time.UTC)
	ch := NewChallenge("example.com", "0x1234567890123456789012345678901234567890", "", "https://example.com", 1, "nonce-123456", issued)

	assert.Equal(t, "1", ch.Version)
	assert.Equal(t, DefaultStatement, ch.Statement)
	// Sub-second precision is dropped so both sides render identical text.
	assert.Equal(t, "2025-03-14T09:26:53Z", ch.IssuedAt)
	assert.Equal(t, "2025-03-14T09:31:53Z", ch.ExpirationTime)
	assert.Equal(t, ch.IssuedAt, ch.NotBefore)
	assert.Empty(t, ch.Resources)
}

func TestChallengeRender(t *testing.T) {
	issued := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	ch := NewChallenge("example.com", "0x1234567890123456789012345678901234567890", "Sign in to Example", "https://example.com/login", 137, "abcdef123456", issued)

	expected := "example.com wants you to sign in with your Ethereum account:\n" +
		"0x1234567890123456789012345678901234567890\n" +
		"\n" +
		"Sign in to Example\n" +
		"\n" +
		"URI: https://example.com/login\n" +
		"Version: 1\n" +
		"Chain ID: 137\n" +
		"Nonce: abcdef123456\n" +
		"Issued At: 2025-03-14T09:26:53Z\n" +
		"Expiration Time: 2025-03-14T09:31:53Z\n" +
		"Not Before: 2025-03-14T09:26:53Z"
	assert.Equal(t, expected, ch.Render())
}

func TestChallengeRenderResources(t *testing.T) {
	issued := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	ch := NewChallenge("example.com", "0xabc", "stmt", "https://example.com", 1, "nonce-123456", issued)
	ch.Resources = []string{"https://example.com/a", "https://example.com/b"}

	rendered := ch.Render()
	assert.Contains(t, rendered, "Resources:\n- https://example.com/a\n- https://example.com/b")
}

func TestChallengeRoundTrip(t *testing.T) {
	ch := NewChallenge("example.com", "0xabc", "stmt", "https://example.com", 1, "nonce-123456", time.Now())

	data, err := json.Marshal(ch)
	require.NoError(t, err)

	var decoded Challenge
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, ch.Equal(decoded))
	assert.Equal(t, ch.Render(), decoded.Render())
}

func TestChallengeWindow(t *testing.T) {
	issued := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	ch := NewChallenge("example.com", "0xabc", "stmt", "https://example.com", 1, "nonce-123456", issued)

	notBefore, expiration, err := ch.Window()
	require.NoError(t, err)
	assert.Equal(t, issued, notBefore)
	assert.Equal(t, issued.Add(ChallengeTTL), expiration)

	ch.ExpirationTime = "not-a-timestamp"
	_, _, err = ch.Window()
	assert.Error(t, err)
}

func TestChallengeEqual(t *testing.T) {
	issued := time.Now()
	a := NewChallenge("example.com", "0xabc", "stmt", "https://example.com", 1, "nonce-123456", issued)
	b := a
	assert.True(t, a.Equal(b))

	b.Nonce = "different-nonce"
	assert.False(t, a.Equal(b))

	b = a
	b.Resources = []string{"https://example.com/a"}
	assert.False(t, a.Equal(b))
}

func TestLoginPayloadValidate(t *testing.T) {
	ch := NewChallenge("example.com", "0xabc", "stmt", "https://example.com", 1, "nonce-123456", time.Now())

	lp := LoginPayload{Payload: ch}
	assert.Error(t, lp.Validate(), "missing signature must not validate")

	lp.Signature = make([]byte, 65)
	assert.NoError(t, lp.Validate())

	lp.Payload.Version = "2"
	assert.Error(t, lp.Validate(), "version is pinned to 1")
}
