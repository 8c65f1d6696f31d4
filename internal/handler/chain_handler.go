package handler

import (
	"net/http"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ChainHandler struct {
	db      *gorm.DB
	manager *chain.Manager
	wallet  *wallet.Wallet
}

func NewChainHandler(app *App) *ChainHandler {
	return &ChainHandler{db: app.DB, manager: app.Manager, wallet: app.Wallet}
}

// Health 健康检查
func (h *ChainHandler) Health(c *gin.Context) {
	health := h.manager.GetHealthStatus(c.Request.Context())
	health["service"] = "crowdchain"
	health["database"] = "ok"

	status := http.StatusOK
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		health["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if health["client_status"] != "connected" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Message: "health", Data: health})
}

// GetChain 当前网络、支持的网络及钱包状态
func (h *ChainHandler) GetChain(c *gin.Context) {
	registry := h.manager.Registry()
	contracts := make(map[string]string)
	for name, contract := range h.manager.GetContracts() {
		contracts[name] = contract.GetAddress().Hex()
	}
	SuccessResponse(c, http.StatusOK, "ok", ChainResponse{
		Network:                registry.ByChainId(h.manager.ChainID().Int64()),
		Networks:               registry.List(),
		Contracts:              contracts,
		Wallet:                 walletState(h.wallet),
		WalletConnectProjectId: h.manager.WalletConnectProjectId(),
	})
}
