package logic

import (
	"context"
	"math/big"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/display"
	"github.com/blues/crowdchain/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
)

// DefaultTokenDecimals 读取失败时使用的精度
const DefaultTokenDecimals uint8 = 6

// TokenLogic 当前网络的 ERC20 代币
type TokenLogic struct {
	manager *chain.Manager
	adapter *chain.Adapter
	txs     *TransactionLogic
	pool    *ants.Pool
}

// TokenInfo 代币信息
type TokenInfo struct {
	Address         common.Address    `json:"address"`
	Network         string            `json:"network"`
	Name            string            `json:"name"`
	Symbol          string            `json:"symbol"`
	Decimals        uint8             `json:"decimals"`
	TotalSupply     *big.Int          `json:"totalSupply"`
	TotalSupplyText string            `json:"totalSupplyText"`
	Holder          common.Address    `json:"holder"`
	Balance         *big.Int          `json:"balance"`
	BalanceText     string            `json:"balanceText"`
	Errors          map[string]string `json:"errors,omitempty"`
}

// TransferRequest 转账参数
type TransferRequest struct {
	To     string `json:"to" form:"to"`
	Amount string `json:"amount" form:"amount"` // 代币单位
}

// NewTokenLogic 创建代币业务逻辑
func NewTokenLogic(manager *chain.Manager, adapter *chain.Adapter, txs *TransactionLogic, pool *ants.Pool) *TokenLogic {
	return &TokenLogic{manager: manager, adapter: adapter, txs: txs, pool: pool}
}

// token 当前网络配置的代币合约
func (l *TokenLogic) token() (*chain.Contract, error) {
	c, err := l.manager.GetContract(chain.ContractERC20)
	if err != nil || c.GetAddress() == (common.Address{}) {
		return nil, ErrTokenNotConfigured
	}
	return c, nil
}

func (l *TokenLogic) decimals(ctx context.Context, c *chain.Contract) (uint8, error) {
	out, err := l.adapter.Read(ctx, c, "decimals")
	if err != nil {
		return DefaultTokenDecimals, err
	}
	d, err := chain.Unpack[uint8](out, 0)
	if err != nil {
		return DefaultTokenDecimals, err
	}
	return d, nil
}

// Info 并发读取代币信息及持有人余额
func (l *TokenLogic) Info(ctx context.Context, holder common.Address) (*TokenInfo, error) {
	c, err := l.token()
	if err != nil {
		return nil, err
	}

	info := &TokenInfo{
		Address:  c.GetAddress(),
		Network:  l.manager.Network().Name,
		Holder:   holder,
		Decimals: DefaultTokenDecimals,
	}

	readString := func(method string, dst *string) func() error {
		return func() error {
			out, err := l.adapter.Read(ctx, c, method)
			if err != nil {
				return err
			}
			*dst, err = chain.Unpack[string](out, 0)
			return err
		}
	}
	readBig := func(dst **big.Int, method string, args ...interface{}) func() error {
		return func() error {
			out, err := l.adapter.Read(ctx, c, method, args...)
			if err != nil {
				return err
			}
			*dst, err = chain.Unpack[*big.Int](out, 0)
			return err
		}
	}

	reads := map[string]func() error{
		"name":        readString("name", &info.Name),
		"symbol":      readString("symbol", &info.Symbol),
		"totalSupply": readBig(&info.TotalSupply, "totalSupply"),
		"decimals": func() (err error) {
			info.Decimals, err = l.decimals(ctx, c)
			return err
		},
	}
	if holder != (common.Address{}) {
		reads["balance"] = readBig(&info.Balance, "balanceOf", holder)
	}

	if errs := runConcurrent(l.pool, reads); len(errs) > 0 {
		info.Errors = errs
	}
	if info.TotalSupply != nil {
		info.TotalSupplyText = display.FormatUnits(info.TotalSupply, info.Decimals)
	}
	if info.Balance != nil {
		info.BalanceText = display.FormatUnits(info.Balance, info.Decimals)
	}
	return info, nil
}

// Transfer 按代币精度换算金额后转账
func (l *TokenLogic) Transfer(ctx context.Context, req TransferRequest) (*model.TransactionModel, error) {
	to, err := ParseAddress(req.To)
	if err != nil {
		return nil, err
	}
	c, err := l.token()
	if err != nil {
		return nil, err
	}

	decimals, _ := l.decimals(ctx, c)
	amount, err := display.ParseUnits(req.Amount, decimals)
	if err != nil {
		return nil, invalid("amount: %v", err)
	}
	if amount.Sign() <= 0 {
		return nil, invalid("amount must be greater than zero")
	}
	return l.txs.Submit(ctx, c, "transfer", nil, to, amount)
}
