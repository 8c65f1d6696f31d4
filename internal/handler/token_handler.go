package handler

import (
	"net/http"

	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	tokens *logic.TokenLogic
	wallet *wallet.Wallet
}

func NewTokenHandler(app *App) *TokenHandler {
	return &TokenHandler{tokens: app.Tokens, wallet: app.Wallet}
}

// GetToken 代币信息及余额
func (h *TokenHandler) GetToken(c *gin.Context) {
	holder, err := viewerOf(c, h.wallet)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	info, err := h.tokens.Info(c.Request.Context(), holder)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", info)
}

// Transfer 代币转账
func (h *TokenHandler) Transfer(c *gin.Context) {
	var req logic.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	record, err := h.tokens.Transfer(c.Request.Context(), req)
	if err != nil {
		FailResponse(c, err, record)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "交易已提交", record)
}
