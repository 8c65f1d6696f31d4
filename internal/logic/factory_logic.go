package logic

import (
	"context"
	"math/big"
	"strings"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/display"
	"github.com/blues/crowdchain/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
)

// FactoryLogic 工厂合约业务逻辑
type FactoryLogic struct {
	manager *chain.Manager
	adapter *chain.Adapter
	txs     *TransactionLogic
	pool    *ants.Pool
}

// CreateCampaignRequest 创建活动参数
type CreateCampaignRequest struct {
	Name         string `json:"name" form:"name"`
	Description  string `json:"description" form:"description"`
	Goal         string `json:"goal" form:"goal"` // ETH
	DurationDays int64  `json:"durationDays" form:"durationDays"`
}

// FactoryOverview 列表页数据
type FactoryOverview struct {
	Factory       string            `json:"factory"`
	Owner         common.Address    `json:"owner"`
	Paused        bool              `json:"paused"`
	IsOwner       bool              `json:"isOwner"`
	Viewer        common.Address    `json:"viewer"`
	Campaigns     []CampaignSummary `json:"campaigns"`
	UserCampaigns []CampaignSummary `json:"userCampaigns"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// NewFactoryLogic 创建工厂业务逻辑
func NewFactoryLogic(manager *chain.Manager, adapter *chain.Adapter, txs *TransactionLogic, pool *ants.Pool) *FactoryLogic {
	return &FactoryLogic{manager: manager, adapter: adapter, txs: txs, pool: pool}
}

func (l *FactoryLogic) factory() (*chain.Contract, error) {
	return l.manager.GetContract(chain.ContractFactory)
}

// Owner 工厂所有者
func (l *FactoryLogic) Owner(ctx context.Context) (common.Address, error) {
	factory, err := l.factory()
	if err != nil {
		return common.Address{}, err
	}
	out, err := l.adapter.Read(ctx, factory, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return chain.Unpack[common.Address](out, 0)
}

// Paused 工厂是否暂停
func (l *FactoryLogic) Paused(ctx context.Context) (bool, error) {
	factory, err := l.factory()
	if err != nil {
		return false, err
	}
	out, err := l.adapter.Read(ctx, factory, "paused")
	if err != nil {
		return false, err
	}
	return chain.Unpack[bool](out, 0)
}

// AllCampaigns 全部活动
func (l *FactoryLogic) AllCampaigns(ctx context.Context) ([]CampaignSummary, error) {
	factory, err := l.factory()
	if err != nil {
		return nil, err
	}
	out, err := l.adapter.Read(ctx, factory, "getAllCampaigns")
	if err != nil {
		return nil, err
	}
	return chain.Unpack[[]CampaignSummary](out, 0)
}

// UserCampaigns 指定用户创建的活动
func (l *FactoryLogic) UserCampaigns(ctx context.Context, user common.Address) ([]CampaignSummary, error) {
	factory, err := l.factory()
	if err != nil {
		return nil, err
	}
	out, err := l.adapter.Read(ctx, factory, "getUserCampagins", user)
	if err != nil {
		return nil, err
	}
	return chain.Unpack[[]CampaignSummary](out, 0)
}

// Overview 并发读取列表页所需的全部数据，单项失败记录在 Errors 中
func (l *FactoryLogic) Overview(ctx context.Context, viewer common.Address) (*FactoryOverview, error) {
	factory, err := l.factory()
	if err != nil {
		return nil, err
	}

	o := &FactoryOverview{
		Factory:       factory.GetAddress().Hex(),
		Viewer:        viewer,
		Campaigns:     []CampaignSummary{},
		UserCampaigns: []CampaignSummary{},
	}

	reads := map[string]func() error{
		"owner": func() (err error) {
			o.Owner, err = l.Owner(ctx)
			return err
		},
		"paused": func() (err error) {
			o.Paused, err = l.Paused(ctx)
			return err
		},
		"campaigns": func() error {
			all, err := l.AllCampaigns(ctx)
			if err == nil {
				o.Campaigns = all
			}
			return err
		},
	}
	if viewer != (common.Address{}) {
		reads["userCampaigns"] = func() error {
			mine, err := l.UserCampaigns(ctx, viewer)
			if err == nil {
				o.UserCampaigns = mine
			}
			return err
		}
	}

	if errs := runConcurrent(l.pool, reads); len(errs) > 0 {
		o.Errors = errs
	}
	o.IsOwner = viewer != (common.Address{}) && o.Owner == viewer
	return o, nil
}

// CreateCampaign 校验参数后调用 createCampagin
func (l *FactoryLogic) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*model.TransactionModel, error) {
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if name == "" || description == "" {
		return nil, invalid("name and description are required")
	}
	if req.DurationDays < 1 {
		return nil, invalid("duration must be at least one day")
	}
	goal, err := display.ParseEther(req.Goal)
	if err != nil {
		return nil, invalid("goal: %v", err)
	}
	if goal.Sign() <= 0 {
		return nil, invalid("goal must be greater than zero")
	}

	factory, err := l.factory()
	if err != nil {
		return nil, err
	}
	return l.txs.Submit(ctx, factory, "createCampagin", nil, name, description, goal, big.NewInt(req.DurationDays))
}

// TogglePause 切换工厂暂停状态，权限由合约校验
func (l *FactoryLogic) TogglePause(ctx context.Context) (*model.TransactionModel, error) {
	factory, err := l.factory()
	if err != nil {
		return nil, err
	}
	return l.txs.Submit(ctx, factory, "togglePause", nil)
}
