package handler

import (
	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/model"
	"github.com/blues/crowdchain/internal/wallet"
	"gorm.io/gorm"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageResponse 分页列表
type PageResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// WalletResponse 钱包状态
type WalletResponse struct {
	Connected      bool   `json:"connected"`
	Address        string `json:"address,omitempty"`
	AddressShort   string `json:"addressShort,omitempty"`
	HasCredentials bool   `json:"hasCredentials"`
}

// ChainResponse 当前网络信息
type ChainResponse struct {
	Network                chain.Network     `json:"network"`
	Networks               []chain.Network   `json:"networks"`
	Contracts              map[string]string `json:"contracts"` // 合约名 -> 地址
	Wallet                 WalletResponse    `json:"wallet"`
	WalletConnectProjectId string            `json:"walletConnectProjectId"`
}

// TransactionResponse 交易及其回执事件
type TransactionResponse struct {
	Transaction *model.TransactionModel `json:"transaction"`
	Events      []model.TxEventModel    `json:"events"`
}

// FundRequest 资助参数
type FundRequest struct {
	TierIndex int `json:"tierIndex" form:"tierIndex"`
}

// AddTierRequest 添加档位参数
type AddTierRequest struct {
	Name   string `json:"name" form:"name"`
	Amount string `json:"amount" form:"amount"` // ETH
}

// App 处理器依赖
type App struct {
	DB        *gorm.DB
	Manager   *chain.Manager
	Wallet    *wallet.Wallet
	Factory   *logic.FactoryLogic
	Campaigns *logic.CampaignLogic
	Tokens    *logic.TokenLogic
	Txs       *logic.TransactionLogic
	Index     *logic.CampaignIndexLogic
}
