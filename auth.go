package walletcore

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

// AuthStatus is a verification outcome. Outcomes are data, not errors:
// callers branch on all of them.
type AuthStatus string

const (
	AuthAuthenticated    AuthStatus = "authenticated"
	AuthInvalidUser      AuthStatus = "invalid_user"
	AuthInvalidSignature AuthStatus = "invalid_signature"
	AuthInvalidSession   AuthStatus = "invalid_session"
	AuthExpired          AuthStatus = "expired"
)

// AuthResult reports how a login attempt ended. Address is set only when
// Status is AuthAuthenticated, checksum-formatted.
type AuthResult struct {
	Status  AuthStatus `json:"status"`
	Address string     `json:"address,omitempty"`
}

// UserRegistry answers whether an address belongs to a known identity.
type UserRegistry interface {
	IsRegistered(ctx context.Context, address common.Address) (bool, error)
	Register(ctx context.Context, address common.Address, email string) error
}

// ChallengeStore keeps the challenge last issued per session. The default is
// in-memory; a relational implementation survives verifier restarts.
type ChallengeStore interface {
	Put(sessionID string, challenge Challenge) error
	Get(sessionID string) (Challenge, bool, error)
	Delete(sessionID string) error
}

// memoryChallengeStore is the default in-process store.
type memoryChallengeStore struct {
	mu     sync.Mutex
	issued map[string]Challenge
}

func newMemoryChallengeStore() *memoryChallengeStore {
	return &memoryChallengeStore{issued: make(map[string]Challenge)}
}

func (s *memoryChallengeStore) Put(sessionID string, challenge Challenge) error {
	s.mu.Lock()
	s.issued[sessionID] = challenge
	s.mu.Unlock()
	return nil
}

func (s *memoryChallengeStore) Get(sessionID string) (Challenge, bool, error) {
	s.mu.Lock()
	challenge, ok := s.issued[sessionID]
	s.mu.Unlock()
	return challenge, ok, nil
}

func (s *memoryChallengeStore) Delete(sessionID string) error {
	s.mu.Lock()
	delete(s.issued, sessionID)
	s.mu.Unlock()
	return nil
}

// Verifier is the server half of the challenge/response protocol. It keeps
// the challenge last issued per session and consumes it on success, so a
// nonce can never validate twice.
type Verifier struct {
	registry   UserRegistry
	signingKey *ecdsa.PrivateKey
	sessionTTL time.Duration
	now        func() time.Time
	lg         log.Logger
	store      ChallengeStore
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithSessionTTL overrides the lifetime of issued session tokens.
func WithSessionTTL(ttl time.Duration) VerifierOption {
	return func(v *Verifier) { v.sessionTTL = ttl }
}

// WithVerifierClock pins the verifier clock, for tests.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// WithChallengeStore replaces the in-memory challenge store, typically with
// the relational one so issued challenges survive restarts.
func WithChallengeStore(store ChallengeStore) VerifierOption {
	return func(v *Verifier) { v.store = store }
}

// NewVerifier creates a verifier. signingKey signs the session tokens handed
// out after successful verification; it may be nil when tokens are not used.
func NewVerifier(registry UserRegistry, signingKey *ecdsa.PrivateKey, lg log.Logger, opts ...VerifierOption) *Verifier {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	v := &Verifier{
		registry:   registry,
		signingKey: signingKey,
		sessionTTL: 24 * time.Hour,
		now:        time.Now,
		lg:         lg.WithName("auth-verifier"),
		store:      newMemoryChallengeStore(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// StoreChallenge records the challenge expected for sessionID. The next
// successful Verify for that session consumes it. Store failures are logged;
// the session simply has no pending challenge afterwards.
func (v *Verifier) StoreChallenge(sessionID string, challenge Challenge) {
	if err := v.store.Put(sessionID, challenge); err != nil {
		v.lg.Error("failed to store challenge", "sessionId", sessionID, "error", err)
	}
}

// Verify runs the four ordered checks against a submitted login payload.
// Registration and signature are deliberately checked before session match
// and freshness; the order is part of the protocol contract because each
// failure is a distinct outcome.
//
// The error return covers only infrastructure faults (registry lookups);
// every protocol-level failure comes back as an AuthResult.
func (v *Verifier) Verify(ctx context.Context, sessionID string, lp LoginPayload) (AuthResult, error) {
	if err := lp.Validate(); err != nil {
		return AuthResult{Status: AuthInvalidSignature}, nil
	}

	claimed := common.HexToAddress(lp.Payload.Address)

	// 1. User registered.
	if v.registry != nil {
		registered, err := v.registry.IsRegistered(ctx, claimed)
		if err != nil {
			return AuthResult{}, errors.Wrap(err, "registry lookup")
		}
		if !registered {
			v.lg.Debug("login rejected, unknown user", "address", claimed.Hex())
			return AuthResult{Status: AuthInvalidUser}, nil
		}
	}

	// 2. Signature valid against the reconstructed canonical text.
	recovered, err := sign.RecoverPersonal([]byte(lp.Payload.Render()), lp.Signature)
	if err != nil || recovered != claimed {
		v.lg.Debug("login rejected, bad signature", "address", claimed.Hex())
		return AuthResult{Status: AuthInvalidSignature}, nil
	}

	// 3. Session match, nonce included.
	expected, ok, err := v.store.Get(sessionID)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, "challenge lookup")
	}
	if !ok || !expected.Equal(lp.Payload) {
		v.lg.Debug("login rejected, challenge mismatch", "sessionId", sessionID)
		return AuthResult{Status: AuthInvalidSession}, nil
	}

	// 4. Time window, verifier's clock.
	notBefore, expiration, err := lp.Payload.Window()
	if err != nil {
		return AuthResult{Status: AuthInvalidSession}, nil
	}
	now := v.now()
	if now.Before(notBefore) || !now.Before(expiration) {
		v.lg.Debug("login rejected, outside window", "sessionId", sessionID)
		return AuthResult{Status: AuthExpired}, nil
	}

	// Consume the nonce so a replay with the same challenge cannot pass.
	if err := v.store.Delete(sessionID); err != nil {
		return AuthResult{}, errors.Wrap(err, "consume challenge")
	}

	v.lg.Info("login verified", "address", claimed.Hex(), "sessionId", sessionID)
	return AuthResult{Status: AuthAuthenticated, Address: claimed.Hex()}, nil
}

// SessionClaims is the token payload issued after a verified login.
type SessionClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

const tokenIssuer = "walletcore"

// IssueSessionToken signs a short-lived token binding the verified address.
func (v *Verifier) IssueSessionToken(address string) (string, error) {
	if v.signingKey == nil {
		return "", errors.New("verifier has no signing key")
	}
	now := v.now()
	claims := SessionClaims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	return token.SignedString(v.signingKey)
}

// VerifySessionToken validates a previously issued token and returns its
// claims.
func (v *Verifier) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	if v.signingKey == nil {
		return nil, errors.New("verifier has no signing key")
	}
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return &v.signingKey.PublicKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, errors.Wrap(err, "parse session token")
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
