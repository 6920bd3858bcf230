package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/eth"
)

// wagerRegistryABI covers the one function and one event this package needs
// from the registry contract.
const wagerRegistryABI = `[
  {"type":"function","name":"createWager","stateMutability":"payable","inputs":[
    {"name":"contestId","type":"string"},
    {"name":"selection","type":"string"},
    {"name":"amount","type":"uint256"},
    {"name":"metadataUri","type":"string"}],
   "outputs":[{"name":"wagerId","type":"uint256"}]},
  {"type":"event","name":"WagerCreated","anonymous":false,"inputs":[
    {"name":"wagerId","type":"uint256","indexed":true},
    {"name":"artifactId","type":"uint256","indexed":true},
    {"name":"creator","type":"address","indexed":true}]}
]`

// DefaultChainID is the Core mainnet.
const DefaultChainID = 1116

// EVMLedger writes wagers to the registry contract over JSON-RPC. One
// transaction per CreateWager call; the receipt's WagerCreated event carries
// the canonical ids.
type EVMLedger struct {
	client      *ethclient.Client
	contract    common.Address
	wallet      *eth.Wallet
	chainID     *big.Int
	registryABI abi.ABI
	limiter     *rate.Limiter
	gasLimit    uint64
	log         *zap.Logger
}

// EVMOption configures the ledger client.
type EVMOption func(*EVMLedger)

// WithChainID overrides the chain the transactions are signed for.
func WithChainID(chainID int64) EVMOption {
	return func(l *EVMLedger) { l.chainID = big.NewInt(chainID) }
}

// WithGasLimit caps the gas attached to each wager transaction.
func WithGasLimit(limit uint64) EVMOption {
	return func(l *EVMLedger) { l.gasLimit = limit }
}

// WithRateLimit throttles RPC submissions.
func WithRateLimit(rps float64, burst int) EVMOption {
	return func(l *EVMLedger) { l.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithLogger attaches a logger; the default is a no-op.
func WithLogger(log *zap.Logger) EVMOption {
	return func(l *EVMLedger) { l.log = log }
}

// NewEVMLedger dials the RPC endpoint and prepares the signing identity.
func NewEVMLedger(rpcURL, contractAddr, privateKey string, opts ...EVMOption) (*EVMLedger, error) {
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("ledger: invalid contract address %q", contractAddr)
	}
	wallet, err := eth.NewWallet(privateKey)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	registryABI, err := abi.JSON(strings.NewReader(wagerRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse registry abi: %w", err)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", rpcURL, err)
	}

	l := &EVMLedger{
		client:      client,
		contract:    common.HexToAddress(contractAddr),
		wallet:      wallet,
		chainID:     big.NewInt(DefaultChainID),
		registryABI: registryABI,
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
		gasLimit:    500_000,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CreateWager builds, signs, and submits the registry transaction, then
// waits for it to mine. The wait honors ctx, so the caller's hard timeout
// fires as context.DeadlineExceeded even though the transaction may still
// land afterwards.
func (l *EVMLedger) CreateWager(ctx context.Context, req CreateRequest) (core.LedgerReceipt, error) {
	if req.AmountMinorUnits == nil || req.AmountMinorUnits.Sign() <= 0 {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: amount must be positive")
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return core.LedgerReceipt{}, err
	}

	data, err := l.registryABI.Pack("createWager", req.ContestID, req.Selection, req.AmountMinorUnits, req.MetadataURI)
	if err != nil {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: pack createWager: %w", err)
	}
	nonce, err := l.client.PendingNonceAt(ctx, l.wallet.Address())
	if err != nil {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: nonce: %w", err)
	}
	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: gas price: %w", err)
	}

	value := big.NewInt(0)
	if req.Native {
		value = req.AmountMinorUnits
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &l.contract,
		Value:    value,
		Gas:      l.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(l.chainID), l.wallet.PrivateKey())
	if err != nil {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: sign: %w", err)
	}
	if err := l.client.SendTransaction(ctx, signed); err != nil {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: submit: %w", err)
	}

	l.log.Info("wager transaction submitted",
		zap.String("tx", signed.Hash().Hex()),
		zap.String("contest", req.ContestID),
		zap.String("amount", req.AmountMinorUnits.String()))

	receipt, err := bind.WaitMined(ctx, l.client, signed)
	if err != nil {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: await receipt for %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: transaction %s reverted", signed.Hash().Hex())
	}

	wagerID, artifactID, ok := ParseWagerCreated(receipt.Logs)
	if !ok {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: transaction %s mined without a WagerCreated event", signed.Hash().Hex())
	}

	out := core.LedgerReceipt{
		WagerID:          wagerID,
		MintedArtifactID: artifactID,
		TxHash:           signed.Hash().Hex(),
		GasUsed:          receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	l.log.Info("wager created on ledger",
		zap.String("wagerId", out.WagerID),
		zap.String("tx", out.TxHash),
		zap.Uint64("block", out.BlockNumber))
	return out, nil
}

// Close releases the underlying RPC connection.
func (l *EVMLedger) Close() {
	l.client.Close()
}
