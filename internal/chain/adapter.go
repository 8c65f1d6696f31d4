package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrTransactionReverted = errors.New("transaction reverted")
)

// Backend 适配器依赖的链客户端能力，*ethclient.Client 满足该接口
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Signer 已连接的钱包
type Signer interface {
	Connected() bool
	Address() common.Address
	Transactor(chainID *big.Int) (*bind.TransactOpts, error)
}

// TxHandle 已签名的交易
type TxHandle struct {
	Hash     common.Hash
	Tx       *types.Transaction
	From     common.Address
	To       common.Address
	Contract string
	Method   string
	Args     []interface{}
	Value    *big.Int
}

// Adapter 合约读写适配器：read / write / awaitReceipt
type Adapter struct {
	backend      Backend
	signer       Signer
	chainID      *big.Int
	pollInterval time.Duration
}

// NewAdapter 创建读写适配器
func NewAdapter(backend Backend, signer Signer, chainID *big.Int) *Adapter {
	return &Adapter{
		backend:      backend,
		signer:       signer,
		chainID:      chainID,
		pollInterval: time.Second,
	}
}

// SetPollInterval 设置等待回执时的轮询间隔
func (a *Adapter) SetPollInterval(d time.Duration) {
	if d > 0 {
		a.pollInterval = d
	}
}

// ChainID 当前链ID
func (a *Adapter) ChainID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

// Signer 当前钱包
func (a *Adapter) Signer() Signer {
	return a.signer
}

// Read 调用合约只读方法
func (a *Adapter) Read(ctx context.Context, contract *Contract, method string, args ...interface{}) ([]interface{}, error) {
	start := time.Now()
	out, err := a.read(ctx, contract, method, args...)
	metrics.ObserveChainCall("read", method, start, err)
	return out, err
}

func (a *Adapter) read(ctx context.Context, contract *Contract, method string, args ...interface{}) ([]interface{}, error) {
	parsed := contract.GetABI()
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", contract.GetName(), method, err)
	}

	to := contract.GetAddress()
	msg := ethereum.CallMsg{To: &to, Data: input}
	if a.signer != nil && a.signer.Connected() {
		msg.From = a.signer.Address()
	}

	output, err := a.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", contract.GetName(), method, err)
	}

	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s.%s: %w", contract.GetName(), method, err)
	}
	return values, nil
}

// Sign 打包并签名交易，不发送
func (a *Adapter) Sign(ctx context.Context, contract *Contract, method string, value *big.Int, args ...interface{}) (*TxHandle, error) {
	if a.signer == nil || !a.signer.Connected() {
		return nil, ErrWalletNotConnected
	}
	if value == nil {
		value = new(big.Int)
	}

	input, err := contract.GetABI().Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", contract.GetName(), method, err)
	}

	opts, err := a.signer.Transactor(a.chainID)
	if err != nil {
		return nil, err
	}
	from := opts.From
	to := contract.GetAddress()

	nonce, err := a.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := a.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	gas, err := a.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: input})
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", contract.GetName(), method, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     input,
	})
	signed, err := opts.Signer(from, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return &TxHandle{
		Hash:     signed.Hash(),
		Tx:       signed,
		From:     from,
		To:       to,
		Contract: contract.GetName(),
		Method:   method,
		Args:     args,
		Value:    value,
	}, nil
}

// Send 广播已签名的交易
func (a *Adapter) Send(ctx context.Context, h *TxHandle) error {
	start := time.Now()
	err := a.backend.SendTransaction(ctx, h.Tx)
	metrics.ObserveChainCall("write", h.Method, start, err)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", h.Contract, h.Method, err)
	}
	logger.Info("Submitted %s.%s tx %s from %s", h.Contract, h.Method, h.Hash.Hex(), h.From.Hex())
	return nil
}

// Write 签名并发送交易
func (a *Adapter) Write(ctx context.Context, contract *Contract, method string, value *big.Int, args ...interface{}) (*TxHandle, error) {
	h, err := a.Sign(ctx, contract, method, value, args...)
	if err != nil {
		return nil, err
	}
	if err := a.Send(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Receipt 查询回执，未上链时返回 (nil, nil)
func (a *Adapter) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := a.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// AwaitReceipt 阻塞等待回执，回执状态为失败时返回 ErrTransactionReverted
func (a *Adapter) AwaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := a.Receipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, ErrTransactionReverted
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Unpack 把只读调用的返回值转换为指定类型
func Unpack[T any](values []interface{}, idx int) (out T, err error) {
	if idx >= len(values) {
		return out, fmt.Errorf("missing return value %d", idx)
	}
	if v, ok := values[idx].(T); ok {
		return v, nil
	}

	// abi.ConvertType 在类型不兼容时 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected return type %T: %v", values[idx], r)
		}
	}()
	converted, ok := abi.ConvertType(values[idx], new(T)).(*T)
	if !ok {
		return out, fmt.Errorf("unexpected return type %T", values[idx])
	}
	return *converted, nil
}
