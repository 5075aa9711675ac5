package walletcore

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/erc4361/walletcore/pkg/sign"
)

// NativeToken is the placeholder address that selects the chain's native
// asset instead of an ERC-20 contract.
const NativeToken = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// nativeDecimals is the wei exponent of the native asset.
const nativeDecimals = 18

// TransactionRequest describes a transaction the caller wants submitted
// as-is. Unset fields are filled by the submitting wallet or node.
type TransactionRequest struct {
	To       string   `json:"to" validate:"required"`
	From     string   `json:"from,omitempty"`
	Data     string   `json:"data,omitempty"`
	Value    *big.Int `json:"value,omitempty"`
	GasLimit uint64   `json:"gasLimit,omitempty"`
	GasPrice *big.Int `json:"gasPrice,omitempty"`
}

// TransactionResult is the normalized outcome of a dispatched transaction.
// When the receipt never arrives, the numeric fields carry the -1 sentinels
// so callers can tell "submitted but unconfirmed" from a mined transaction.
type TransactionResult struct {
	From             string `json:"fromAddress"`
	To               string `json:"toAddress"`
	TransactionIndex int64  `json:"transactionIndex"`
	GasUsed          string `json:"gasUsed"`
	BlockHash        string `json:"blockHash"`
	ID               string `json:"id"`
	Status           string `json:"status"`
}

// Transaction status values reported in TransactionResult.
const (
	TxStatusSuccess  = "success"
	TxStatusReverted = "reverted"
	TxStatusPending  = "pending"
)

// newPendingResult is the sentinel result for a transaction that was
// accepted by the network but whose receipt could not be observed.
func newPendingResult(from, to string) *TransactionResult {
	return &TransactionResult{
		From:             from,
		To:               to,
		TransactionIndex: -1,
		GasUsed:          "-1",
		BlockHash:        "",
		ID:               "-1",
		Status:           TxStatusPending,
	}
}

// newMinedResult folds a receipt into the normalized result shape.
func newMinedResult(from, to string, receipt *types.Receipt) *TransactionResult {
	status := TxStatusReverted
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = TxStatusSuccess
	}
	return &TransactionResult{
		From:             from,
		To:               to,
		TransactionIndex: int64(receipt.TransactionIndex),
		GasUsed:          new(big.Int).SetUint64(receipt.GasUsed).String(),
		BlockHash:        receipt.BlockHash.Hex(),
		ID:               receipt.TxHash.Hex(),
		Status:           status,
	}
}

// ChainBackend is the node surface the dispatcher needs: nonce and gas
// discovery, submission, and receipt lookup. *ethclient.Client satisfies it.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

var _ ChainBackend = (*ethclient.Client)(nil)

// hashSender is a provider whose wallet signs and submits transactions
// itself, handing back only the transaction hash.
type hashSender interface {
	SendTransactionHash(ctx context.Context, req *TransactionRequest) (common.Hash, error)
}

// resultTransferor is a provider that runs the entire transfer round trip
// remotely and returns an already-normalized result.
type resultTransferor interface {
	TransferNative(ctx context.Context, to string, amountWei *big.Int) (*TransactionResult, error)
	SendRawTransaction(ctx context.Context, req *TransactionRequest) (*TransactionResult, error)
}

// TokenTransferor moves ERC-20 balances on behalf of the session. The core
// ships no contract bindings; integrations plug their own in.
type TokenTransferor interface {
	TransferToken(ctx context.Context, token, to string, amountWei *big.Int) (*TransactionResult, error)
}

// Transfer moves amount units of token (NativeToken for the chain's own
// asset) to the recipient and waits for the receipt. A transaction that was
// submitted but never confirmed yields the sentinel result, not an error.
func (s *Session) Transfer(ctx context.Context, to string, amount decimal.Decimal, token string) (*TransactionResult, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil, err
	}

	if token != NativeToken {
		if s.tokens == nil {
			return nil, ErrUnsupportedOnPlatform
		}
		amountWei := amount.Shift(nativeDecimals).BigInt()
		return s.tokens.TransferToken(ctx, token, to, amountWei)
	}

	amountWei := amount.Shift(nativeDecimals).BigInt()

	if rt, ok := provider.(resultTransferor); ok {
		return rt.TransferNative(ctx, to, amountWei)
	}

	from, err := provider.Address()
	if err != nil {
		return nil, err
	}

	req := &TransactionRequest{
		To:       to,
		From:     from.Hex(),
		Value:    amountWei,
		GasLimit: nativeTransferGas,
	}
	return s.dispatch(ctx, provider, req)
}

// SendRawTransaction submits exactly the transaction the caller described
// and waits for its receipt.
func (s *Session) SendRawTransaction(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	provider, err := s.connectedProvider()
	if err != nil {
		return nil, err
	}
	if err := connectionValidator.Struct(req); err != nil {
		return nil, err
	}

	if rt, ok := provider.(resultTransferor); ok {
		return rt.SendRawTransaction(ctx, req)
	}

	if req.From == "" {
		from, err := provider.Address()
		if err != nil {
			return nil, err
		}
		req.From = from.Hex()
	}
	return s.dispatch(ctx, provider, req)
}

// nativeTransferGas is the intrinsic gas of a plain value transfer.
const nativeTransferGas = 21000

// dispatch routes a request to whichever submission path the provider
// supports, then waits for the receipt.
func (s *Session) dispatch(ctx context.Context, provider Provider, req *TransactionRequest) (*TransactionResult, error) {
	if hs, ok := provider.(hashSender); ok {
		txHash, err := hs.SendTransactionHash(ctx, req)
		if err != nil {
			return nil, err
		}
		return s.awaitHash(ctx, req, txHash)
	}

	signer := provider.LocalAccount()
	if signer == nil {
		return nil, ErrUnsupportedOnPlatform
	}
	if s.backend == nil {
		return nil, ErrUnsupportedOnPlatform
	}
	return s.submitLocal(ctx, signer, req)
}

// submitLocal builds, signs, and submits a transaction with the in-memory
// key, then waits for the receipt.
func (s *Session) submitLocal(ctx context.Context, signer *sign.LocalSigner, req *TransactionRequest) (*TransactionResult, error) {
	from := signer.Address()

	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "chain id: %v", err)
	}

	var nonce uint64
	if s.nonceFn != nil {
		nonce, err = s.nonceFn(ctx, from)
	} else {
		nonce, err = s.backend.PendingNonceAt(ctx, from)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "nonce: %v", err)
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		gasPrice, err = s.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, errors.Wrapf(ErrTransportFailure, "gas price: %v", err)
		}
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit = nativeTransferGas
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	toAddr := common.HexToAddress(req.To)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     common.FromHex(req.Data),
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), signer.PrivateKey())
	if err != nil {
		return nil, err
	}

	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrapf(ErrTransportFailure, "send transaction: %v", err)
	}
	s.lg.Debug("transaction submitted", "hash", signedTx.Hash().Hex(), "nonce", nonce)

	receipt, err := bind.WaitMined(ctx, s.backend, signedTx)
	if err != nil || receipt == nil {
		s.lg.Warn("receipt not observed, returning pending sentinel", "hash", signedTx.Hash().Hex())
		return newPendingResult(from.Hex(), req.To), nil
	}
	return newMinedResult(from.Hex(), req.To, receipt), nil
}

// awaitHash waits for the receipt of a transaction the wallet submitted on
// its own.
func (s *Session) awaitHash(ctx context.Context, req *TransactionRequest, txHash common.Hash) (*TransactionResult, error) {
	if s.backend == nil {
		// No node to watch receipts on; report the unconfirmed sentinel.
		return newPendingResult(req.From, req.To), nil
	}
	receipt, err := bind.WaitMinedHash(ctx, s.backend, txHash)
	if err != nil || receipt == nil {
		s.lg.Warn("receipt not observed, returning pending sentinel", "hash", txHash.Hex())
		return newPendingResult(req.From, req.To), nil
	}
	return newMinedResult(req.From, req.To, receipt), nil
}
