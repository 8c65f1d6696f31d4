// Package chaintest 提供内存中的链后端，按ABI打包预设的返回值，供测试使用。
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Handler 根据调用参数返回结果
type Handler func(args []interface{}) ([]interface{}, error)

// Call 一次 eth_call 记录
type Call struct {
	To     common.Address
	From   common.Address
	Method string
	Args   []interface{}
}

type contractStub struct {
	abi      abi.ABI
	handlers map[string]Handler
}

// Backend 内存链后端
type Backend struct {
	mu sync.Mutex

	ChainId  *big.Int
	GasPrice *big.Int
	Gas      uint64
	Block    uint64
	AutoMine bool // 发送后立即生成回执
	Revert   bool // 自动生成的回执状态为失败
	SendErr  error
	Logs     []*types.Log // 下一笔自动回执附带的日志

	contracts map[common.Address]*contractStub
	nonces    map[common.Address]uint64
	receipts  map[common.Hash]*types.Receipt
	sent      []*types.Transaction
	calls     []Call
}

// NewBackend 创建内存链后端
func NewBackend(chainID int64) *Backend {
	return &Backend{
		ChainId:   big.NewInt(chainID),
		GasPrice:  big.NewInt(1_000_000_000),
		Gas:       100_000,
		Block:     100,
		AutoMine:  true,
		contracts: make(map[common.Address]*contractStub),
		nonces:    make(map[common.Address]uint64),
		receipts:  make(map[common.Hash]*types.Receipt),
	}
}

// Deploy 注册合约地址及其ABI
func (b *Backend) Deploy(address common.Address, parsed abi.ABI) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contracts[address] = &contractStub{abi: parsed, handlers: make(map[string]Handler)}
}

// SetResult 设置方法的固定返回值
func (b *Backend) SetResult(address common.Address, method string, values ...interface{}) {
	b.SetHandler(address, method, func([]interface{}) ([]interface{}, error) {
		return values, nil
	})
}

// SetError 让方法调用返回错误
func (b *Backend) SetError(address common.Address, method string, err error) {
	b.SetHandler(address, method, func([]interface{}) ([]interface{}, error) {
		return nil, err
	})
}

// SetHandler 设置方法处理函数，方法名不在ABI中时 panic
func (b *Backend) SetHandler(address common.Address, method string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stub, ok := b.contracts[address]
	if !ok {
		panic(fmt.Sprintf("contract %s not deployed", address.Hex()))
	}
	if _, ok := stub.abi.Methods[method]; !ok {
		panic(fmt.Sprintf("method %s not in the ABI of %s", method, address.Hex()))
	}
	stub.handlers[method] = h
}

// Calls 返回全部调用记录
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Sent 返回已发送的交易
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// SetReceipt 手动写入回执
func (b *Backend) SetReceipt(hash common.Hash, status uint64, logs ...*types.Log) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = b.newReceipt(hash, status, logs)
}

func (b *Backend) newReceipt(hash common.Hash, status uint64, logs []*types.Log) *types.Receipt {
	b.Block++
	for i, l := range logs {
		l.TxHash = hash
		l.BlockNumber = b.Block
		l.Index = uint(i)
	}
	return &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(b.Block),
		GasUsed:     b.Gas / 2,
		Logs:        logs,
	}
}

// resolve 解析调用数据
func (b *Backend) resolve(to *common.Address, data []byte) (*contractStub, *abi.Method, []interface{}, error) {
	if to == nil {
		return nil, nil, nil, errors.New("contract creation not supported")
	}
	stub, ok := b.contracts[*to]
	if !ok {
		return nil, nil, nil, fmt.Errorf("no contract code at %s", to.Hex())
	}
	if len(data) < 4 {
		return nil, nil, nil, errors.New("execution reverted")
	}
	method, err := stub.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, nil, err
	}
	return stub, method, args, nil
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	stub, method, args, err := b.resolve(msg.To, msg.Data)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.calls = append(b.calls, Call{To: *msg.To, From: msg.From, Method: method.Name, Args: args})
	h, ok := stub.handlers[method.Name]
	b.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("execution reverted: no result for %s", method.Name)
	}
	values, err := h(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(values...)
}

func (b *Backend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.contracts[account]; ok {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// 写方法的预设错误在估算阶段模拟 revert
	stub, method, args, err := b.resolve(msg.To, msg.Data)
	if err != nil {
		return 0, err
	}
	if h, ok := stub.handlers[method.Name]; ok {
		if _, err := h(args); err != nil {
			return 0, err
		}
	}
	return b.Gas, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}

	from, err := types.Sender(types.LatestSignerForChainID(b.ChainId), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != b.nonces[from] {
		return errors.New("nonce too low")
	}
	b.nonces[from]++
	b.sent = append(b.sent, tx)

	if b.AutoMine {
		status := types.ReceiptStatusSuccessful
		if b.Revert {
			status = types.ReceiptStatusFailed
		}
		b.receipts[tx.Hash()] = b.newReceipt(tx.Hash(), status, b.Logs)
		b.Logs = nil
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Block, nil
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.ChainId), nil
}
