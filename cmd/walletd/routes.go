package main

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	walletcore "github.com/erc4361/walletcore"
	"github.com/erc4361/walletcore/pkg/bridge"
	"github.com/erc4361/walletcore/pkg/log"
	"github.com/erc4361/walletcore/pkg/sign"
)

// routeHandlers serves the bridge IPC surface on top of one wallet session.
type routeHandlers struct {
	session   *walletcore.Session
	verifier  *walletcore.Verifier
	metrics   *walletcore.Metrics
	sessionID string
	domain    string
	lg        log.Logger
}

// register wires every route into the bridge node.
func (h *routeHandlers) register(node *bridge.Node) {
	node.Handle(bridge.RouteAuthLogin, h.instrument(bridge.RouteAuthLogin, h.authLogin))
	node.Handle(bridge.RouteAuthVerify, h.instrument(bridge.RouteAuthVerify, h.authVerify))
	node.Handle(bridge.RouteWalletBalance, h.instrument(bridge.RouteWalletBalance, h.walletBalance))
	node.Handle(bridge.RouteWalletGetAddress, h.instrument(bridge.RouteWalletGetAddress, h.walletGetAddress))
	node.Handle(bridge.RouteWalletIsConnected, h.instrument(bridge.RouteWalletIsConnected, h.walletIsConnected))
	node.Handle(bridge.RouteWalletGetChainID, h.instrument(bridge.RouteWalletGetChainID, h.walletGetChainID))
	node.Handle(bridge.RouteWalletTransfer, h.instrument(bridge.RouteWalletTransfer, h.walletTransfer))
	node.Handle(bridge.RouteWalletSign, h.instrument(bridge.RouteWalletSign, h.walletSign))
	node.Handle(bridge.RouteWalletSignTypedData, h.instrument(bridge.RouteWalletSignTypedData, h.walletSignTypedData))
	node.Handle(bridge.RouteWalletRecover, h.instrument(bridge.RouteWalletRecover, h.walletRecoverAddress))
	node.Handle(bridge.RouteWalletSendRawTx, h.instrument(bridge.RouteWalletSendRawTx, h.walletSendRawTransaction))
}

func (h *routeHandlers) instrument(route string, fn bridge.HandlerFunc) bridge.HandlerFunc {
	return func(ctx context.Context, args []string) (any, error) {
		result, err := fn(ctx, args)
		status := "ok"
		if err != nil {
			status = "error"
		}
		h.metrics.BridgeRequests.WithLabelValues(route, status).Inc()
		return result, err
	}
}

// authLogin signs a fresh challenge for the requested domain and stores it
// as the expected challenge for this daemon's session.
func (h *routeHandlers) authLogin(ctx context.Context, args []string) (any, error) {
	domain := h.domain
	if len(args) > 0 && args[0] != "" {
		domain = args[0]
	}

	payload, err := h.session.Login(ctx, domain, "")
	if err != nil {
		return nil, err
	}
	h.verifier.StoreChallenge(h.sessionID, payload.Payload)
	h.metrics.AuthChallengesIssued.Inc()
	return payload, nil
}

// authVerify runs the four-check verification over a submitted payload and
// returns the outcome, plus a session token when authenticated.
func (h *routeHandlers) authVerify(ctx context.Context, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("auth/verify requires a login payload argument")
	}

	var payload walletcore.LoginPayload
	if err := json.Unmarshal([]byte(args[0]), &payload); err != nil {
		return nil, errors.Wrap(err, "malformed login payload")
	}

	h.metrics.AuthAttemptsTotal.Inc()
	result, err := h.verifier.Verify(ctx, h.sessionID, payload)
	if err != nil {
		return nil, err
	}
	h.metrics.AuthOutcomes.WithLabelValues(string(result.Status)).Inc()

	response := struct {
		walletcore.AuthResult
		Token string `json:"token,omitempty"`
	}{AuthResult: result}

	if result.Status == walletcore.AuthAuthenticated {
		token, err := h.verifier.IssueSessionToken(result.Address)
		if err != nil {
			h.lg.Error("failed to issue session token", "error", err)
		} else {
			response.Token = token
		}
	}
	return response, nil
}

func (h *routeHandlers) walletBalance(ctx context.Context, args []string) (any, error) {
	balance, err := h.session.Balance(ctx)
	if err != nil {
		return nil, err
	}
	return balance.String(), nil
}

func (h *routeHandlers) walletGetAddress(ctx context.Context, args []string) (any, error) {
	address, err := h.session.Address()
	if err != nil {
		return nil, err
	}
	return address.Hex(), nil
}

func (h *routeHandlers) walletIsConnected(ctx context.Context, args []string) (any, error) {
	return h.session.IsConnected(), nil
}

func (h *routeHandlers) walletGetChainID(ctx context.Context, args []string) (any, error) {
	chainID, err := h.session.ChainID()
	if err != nil {
		return nil, err
	}
	return decimal.NewFromUint64(chainID).String(), nil
}

// walletTransfer expects (to, amount, token). The amount is a decimal in
// whole native units; the token defaults to the native sentinel.
func (h *routeHandlers) walletTransfer(ctx context.Context, args []string) (any, error) {
	if len(args) < 2 {
		return nil, errors.New("wallet/transfer requires recipient and amount arguments")
	}

	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return nil, errors.Wrap(err, "malformed transfer amount")
	}

	token := walletcore.NativeToken
	if len(args) > 2 && args[2] != "" {
		token = args[2]
	}

	h.metrics.TransferAttemptsTotal.Inc()
	result, err := h.session.Transfer(ctx, args[0], amount, token)
	if err != nil {
		h.metrics.TransferAttemptsFail.Inc()
		return nil, err
	}
	h.metrics.TransferAttemptsSuccess.Inc()
	return result, nil
}

func (h *routeHandlers) walletSign(ctx context.Context, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("wallet/sign requires a message argument")
	}
	signature, err := h.session.SignMessage(ctx, []byte(args[0]))
	if err != nil {
		return nil, err
	}
	h.metrics.SignOperations.WithLabelValues("personal").Inc()
	return signature.String(), nil
}

// walletSignTypedData expects the EIP-712 payload as its single JSON
// argument. The remote-signer normalization happens inside the provider
// when the active signer is external.
func (h *routeHandlers) walletSignTypedData(ctx context.Context, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("wallet/signTypedData requires a typed data argument")
	}

	var td apitypes.TypedData
	if err := json.Unmarshal([]byte(args[0]), &td); err != nil {
		return nil, errors.Wrap(err, "malformed typed data")
	}

	signature, err := h.session.SignTypedData(ctx, td)
	if err != nil {
		return nil, err
	}
	h.metrics.SignOperations.WithLabelValues("typed_data").Inc()
	return signature.String(), nil
}

// walletRecoverAddress expects (message, signature) and returns the
// checksum address the signature recovers to.
func (h *routeHandlers) walletRecoverAddress(ctx context.Context, args []string) (any, error) {
	if len(args) < 2 {
		return nil, errors.New("wallet/recoverAddress requires message and signature arguments")
	}

	signature, err := sign.ParseSignature(args[1])
	if err != nil {
		return nil, err
	}
	address, err := walletcore.RecoverAddress([]byte(args[0]), signature)
	if err != nil {
		return nil, err
	}
	return address.Hex(), nil
}

func (h *routeHandlers) walletSendRawTransaction(ctx context.Context, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("wallet/sendRawTransaction requires a transaction argument")
	}

	var req walletcore.TransactionRequest
	if err := json.Unmarshal([]byte(args[0]), &req); err != nil {
		return nil, errors.Wrap(err, "malformed transaction request")
	}

	h.metrics.TransferAttemptsTotal.Inc()
	result, err := h.session.SendRawTransaction(ctx, &req)
	if err != nil {
		h.metrics.TransferAttemptsFail.Inc()
		return nil, err
	}
	h.metrics.TransferAttemptsSuccess.Inc()
	return result, nil
}
