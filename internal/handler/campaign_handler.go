package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	campaigns *logic.CampaignLogic
	index     *logic.CampaignIndexLogic
	wallet    *wallet.Wallet
}

func NewCampaignHandler(app *App) *CampaignHandler {
	return &CampaignHandler{campaigns: app.Campaigns, index: app.Index, wallet: app.Wallet}
}

// GetCampaign 活动详情，始终直接读链
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	viewer, err := viewerOf(c, h.wallet)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	detail, err := h.campaigns.Detail(c.Request.Context(), c.Param("address"), viewer)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", detail)
}

// Fund 资助指定档位
func (h *CampaignHandler) Fund(c *gin.Context) {
	var req FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	record, err := h.campaigns.Fund(c.Request.Context(), c.Param("address"), req.TierIndex)
	if err != nil {
		FailResponse(c, err, record)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "交易已提交", record)
}

// AddTier 添加档位
func (h *CampaignHandler) AddTier(c *gin.Context) {
	var req AddTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	record, err := h.campaigns.AddTier(c.Request.Context(), c.Param("address"), req.Name, req.Amount)
	if err != nil {
		FailResponse(c, err, record)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "交易已提交", record)
}

// RemoveTier 删除档位
func (h *CampaignHandler) RemoveTier(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的档位序号")
		return
	}
	record, err := h.campaigns.RemoveTier(c.Request.Context(), c.Param("address"), index)
	if err != nil {
		FailResponse(c, err, record)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "交易已提交", record)
}

// GetTiers 活动档位
func (h *CampaignHandler) GetTiers(c *gin.Context) {
	tiers, err := h.campaigns.Tiers(c.Request.Context(), c.Param("address"))
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	if tiers == nil {
		tiers = []logic.Tier{}
	}
	SuccessResponse(c, http.StatusOK, "ok", tiers)
}

// GetIndex 活动列表缓存
func (h *CampaignHandler) GetIndex(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = logic.NormalizePage(page, pageSize)

	rows, total, err := h.index.List(c.Query("owner"), page, pageSize)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PageResponse{Items: rows, Total: total, Page: page, PageSize: pageSize})
}
