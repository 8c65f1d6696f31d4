package handler

import (
	"net/http"

	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/gin-gonic/gin"
)

type FactoryHandler struct {
	factory *logic.FactoryLogic
	wallet  *wallet.Wallet
}

func NewFactoryHandler(app *App) *FactoryHandler {
	return &FactoryHandler{factory: app.Factory, wallet: app.Wallet}
}

// GetFactory 工厂概览：所有者、暂停状态、全部活动及当前用户的活动
func (h *FactoryHandler) GetFactory(c *gin.Context) {
	viewer, err := viewerOf(c, h.wallet)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	overview, err := h.factory.Overview(c.Request.Context(), viewer)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", overview)
}

// GetCampaigns 活动列表，owner 参数过滤创建者
func (h *FactoryHandler) GetCampaigns(c *gin.Context) {
	var (
		campaigns []logic.CampaignSummary
		err       error
	)
	if owner := c.Query("owner"); owner != "" {
		addr, perr := logic.ParseAddress(owner)
		if perr != nil {
			FailResponse(c, perr, nil)
			return
		}
		campaigns, err = h.factory.UserCampaigns(c.Request.Context(), addr)
	} else {
		campaigns, err = h.factory.AllCampaigns(c.Request.Context())
	}
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	if campaigns == nil {
		campaigns = []logic.CampaignSummary{}
	}
	SuccessResponse(c, http.StatusOK, "ok", campaigns)
}

// CreateCampaign 创建活动
func (h *FactoryHandler) CreateCampaign(c *gin.Context) {
	var req logic.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	record, err := h.factory.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		FailResponse(c, err, record)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "交易已提交", record)
}

// TogglePause 切换工厂暂停状态
func (h *FactoryHandler) TogglePause(c *gin.Context) {
	record, err := h.factory.TogglePause(c.Request.Context())
	if err != nil {
		FailResponse(c, err, record)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "交易已提交", record)
}
