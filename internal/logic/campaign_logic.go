package logic

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/display"
	"github.com/blues/crowdchain/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
)

// CampaignLogic 单个活动合约的业务逻辑
type CampaignLogic struct {
	manager *chain.Manager
	adapter *chain.Adapter
	txs     *TransactionLogic
	pool    *ants.Pool
	now     func() time.Time
}

// TierView 档位展示数据
type TierView struct {
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Amount      *big.Int `json:"amount"`
	AmountEther string   `json:"amountEther"`
	Backers     *big.Int `json:"backers"`
}

// CampaignDetail 详情页数据，读取失败的字段保持零值，错误记录在 Errors 中
type CampaignDetail struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Goal        *big.Int       `json:"goal"`
	Deadline    uint64         `json:"deadline"`
	Owner       common.Address `json:"owner"`
	Balance     *big.Int       `json:"balance"`
	Status      uint8          `json:"status"`
	Tiers       []TierView     `json:"tiers"`

	Viewer       common.Address `json:"viewer"`
	Contribution *big.Int       `json:"contribution"`

	GoalEther         string               `json:"goalEther"`
	BalanceEther      string               `json:"balanceEther"`
	ContributionEther string               `json:"contributionEther"`
	Progress          float64              `json:"progress"`
	Expired           bool                 `json:"expired"`
	State             display.DisplayState `json:"state"`
	StateLabel        string               `json:"stateLabel"`
	CanFund           bool                 `json:"canFund"`
	DeadlineText      string               `json:"deadlineText"`
	OwnerShort        string               `json:"ownerShort"`
	AddressShort      string               `json:"addressShort"`
	IsOwner           bool                 `json:"isOwner"`

	Errors map[string]string `json:"errors,omitempty"`
}

// campaignSnapshot 列表索引使用的链上读数
type campaignSnapshot struct {
	Goal     *big.Int
	Balance  *big.Int
	Deadline uint64
	Status   uint8
	Errors   map[string]string
}

// NewCampaignLogic 创建活动业务逻辑
func NewCampaignLogic(manager *chain.Manager, adapter *chain.Adapter, txs *TransactionLogic, pool *ants.Pool) *CampaignLogic {
	return &CampaignLogic{manager: manager, adapter: adapter, txs: txs, pool: pool, now: time.Now}
}

// campaign 按地址绑定活动合约
func (l *CampaignLogic) campaign(address string) (*chain.Contract, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	tmpl, err := l.manager.GetContract(chain.ContractCampaign)
	if err != nil {
		return nil, err
	}
	return tmpl.At(addr), nil
}

func (l *CampaignLogic) readString(ctx context.Context, c *chain.Contract, method string) (string, error) {
	out, err := l.adapter.Read(ctx, c, method)
	if err != nil {
		return "", err
	}
	return chain.Unpack[string](out, 0)
}

func (l *CampaignLogic) readBig(ctx context.Context, c *chain.Contract, method string, args ...interface{}) (*big.Int, error) {
	out, err := l.adapter.Read(ctx, c, method, args...)
	if err != nil {
		return nil, err
	}
	return chain.Unpack[*big.Int](out, 0)
}

func (l *CampaignLogic) readStatus(ctx context.Context, c *chain.Contract) (uint8, error) {
	out, err := l.adapter.Read(ctx, c, "getCampaginStatus")
	if err != nil {
		return 0, err
	}
	return chain.Unpack[uint8](out, 0)
}

func (l *CampaignLogic) readTiers(ctx context.Context, c *chain.Contract) ([]Tier, error) {
	out, err := l.adapter.Read(ctx, c, "getTiers")
	if err != nil {
		return nil, err
	}
	return chain.Unpack[[]Tier](out, 0)
}

// Tiers 活动档位
func (l *CampaignLogic) Tiers(ctx context.Context, address string) ([]Tier, error) {
	c, err := l.campaign(address)
	if err != nil {
		return nil, err
	}
	return l.readTiers(ctx, c)
}

// Detail 并发读取活动全部字段并计算展示数据
func (l *CampaignLogic) Detail(ctx context.Context, address string, viewer common.Address) (*CampaignDetail, error) {
	c, err := l.campaign(address)
	if err != nil {
		return nil, err
	}

	d := &CampaignDetail{Address: c.GetAddress(), Viewer: viewer, Tiers: []TierView{}}
	var (
		deadline *big.Int
		tiers    []Tier
	)

	reads := map[string]func() error{
		"name": func() (err error) {
			d.Name, err = l.readString(ctx, c, "name")
			return err
		},
		"description": func() (err error) {
			d.Description, err = l.readString(ctx, c, "description")
			return err
		},
		"goal": func() (err error) {
			d.Goal, err = l.readBig(ctx, c, "goal")
			return err
		},
		"deadline": func() (err error) {
			deadline, err = l.readBig(ctx, c, "deadline")
			return err
		},
		"owner": func() error {
			out, err := l.adapter.Read(ctx, c, "owner")
			if err != nil {
				return err
			}
			d.Owner, err = chain.Unpack[common.Address](out, 0)
			return err
		},
		"balance": func() (err error) {
			d.Balance, err = l.readBig(ctx, c, "getContractBalance")
			return err
		},
		"status": func() (err error) {
			d.Status, err = l.readStatus(ctx, c)
			return err
		},
		"tiers": func() (err error) {
			tiers, err = l.readTiers(ctx, c)
			return err
		},
	}
	if viewer != (common.Address{}) {
		reads["contribution"] = func() (err error) {
			d.Contribution, err = l.readBig(ctx, c, "backers", viewer)
			return err
		}
	}

	errs := runConcurrent(l.pool, reads)
	if len(errs) > 0 {
		d.Errors = errs
	}

	if deadline != nil {
		d.Deadline = deadline.Uint64()
	}
	for i, t := range tiers {
		d.Tiers = append(d.Tiers, TierView{
			Index:       i,
			Name:        t.Name,
			Amount:      t.Amount,
			AmountEther: display.FormatEther(t.Amount),
			Backers:     t.Backers,
		})
	}

	l.decorate(d, errs)
	return d, nil
}

// decorate 计算展示字段
func (l *CampaignLogic) decorate(d *CampaignDetail, errs map[string]string) {
	d.GoalEther = display.FormatEther(d.Goal)
	d.BalanceEther = display.FormatEther(d.Balance)
	d.ContributionEther = display.FormatEther(d.Contribution)
	d.Progress = display.Progress(d.Balance, d.Goal)
	d.Expired = display.IsExpired(d.Deadline, l.now())
	d.DeadlineText = display.FormatTimestamp(d.Deadline)
	d.AddressShort = display.TruncateAddress(d.Address.Hex())
	if d.Owner != (common.Address{}) {
		d.OwnerShort = display.TruncateAddress(d.Owner.Hex())
	}
	d.IsOwner = d.Viewer != (common.Address{}) && d.Owner == d.Viewer

	if _, failed := errs["status"]; failed {
		d.State = display.DisplayUnknown
		if d.Expired {
			d.State = display.DisplayExpired
		}
		d.CanFund = false
	} else {
		state := display.CampaignState(d.Status)
		d.State = display.StateOf(state, d.Expired)
		d.CanFund = display.CanFund(state, d.Expired)
	}
	d.StateLabel = d.State.Label()
}

// snapshot 读取列表索引所需字段，顺序执行
func (l *CampaignLogic) snapshot(ctx context.Context, address common.Address) campaignSnapshot {
	s := campaignSnapshot{Errors: make(map[string]string)}
	c, err := l.campaign(address.Hex())
	if err != nil {
		s.Errors["campaign"] = err.Error()
		return s
	}

	if s.Goal, err = l.readBig(ctx, c, "goal"); err != nil {
		s.Errors["goal"] = err.Error()
	}
	if s.Balance, err = l.readBig(ctx, c, "getContractBalance"); err != nil {
		s.Errors["balance"] = err.Error()
	}
	if deadline, err := l.readBig(ctx, c, "deadline"); err != nil {
		s.Errors["deadline"] = err.Error()
	} else {
		s.Deadline = deadline.Uint64()
	}
	if s.Status, err = l.readStatus(ctx, c); err != nil {
		s.Errors["status"] = err.Error()
	}
	return s
}

// Fund 按档位金额资助活动
func (l *CampaignLogic) Fund(ctx context.Context, address string, tierIndex int) (*model.TransactionModel, error) {
	c, err := l.campaign(address)
	if err != nil {
		return nil, err
	}

	tiers, err := l.readTiers(ctx, c)
	if err != nil {
		return nil, err
	}
	if tierIndex < 0 || tierIndex >= len(tiers) {
		return nil, invalid("tier index %d out of range (%d tiers)", tierIndex, len(tiers))
	}

	status, err := l.readStatus(ctx, c)
	if err != nil {
		return nil, err
	}
	deadline, err := l.readBig(ctx, c, "deadline")
	if err != nil {
		return nil, err
	}
	if !display.CanFund(display.CampaignState(status), display.IsExpired(deadline.Uint64(), l.now())) {
		return nil, ErrFundingClosed
	}

	return l.txs.Submit(ctx, c, "fund", tiers[tierIndex].Amount, big.NewInt(int64(tierIndex)))
}

// AddTier 添加档位，权限由合约校验
func (l *CampaignLogic) AddTier(ctx context.Context, address, name, amountEther string) (*model.TransactionModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("tier name is required")
	}
	amount, err := display.ParseEther(amountEther)
	if err != nil {
		return nil, invalid("amount: %v", err)
	}
	if amount.Sign() <= 0 {
		return nil, invalid("amount must be greater than zero")
	}

	c, err := l.campaign(address)
	if err != nil {
		return nil, err
	}
	return l.txs.Submit(ctx, c, "addTier", nil, name, amount)
}

// RemoveTier 删除档位，权限由合约校验
func (l *CampaignLogic) RemoveTier(ctx context.Context, address string, index int) (*model.TransactionModel, error) {
	c, err := l.campaign(address)
	if err != nil {
		return nil, err
	}

	tiers, err := l.readTiers(ctx, c)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(tiers) {
		return nil, invalid("tier index %d out of range (%d tiers)", index, len(tiers))
	}
	return l.txs.Submit(ctx, c, "removeTier", nil, big.NewInt(int64(index)))
}
