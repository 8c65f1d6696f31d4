package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/blues/crowdchain/internal/logic"
	"github.com/gin-gonic/gin"
)

// waitTimeout ?wait=true 时等待回执的最长时间
const waitTimeout = 2 * time.Minute

type TransactionHandler struct {
	txs *logic.TransactionLogic
}

func NewTransactionHandler(app *App) *TransactionHandler {
	return &TransactionHandler{txs: app.Txs}
}

// GetTransactions 交易列表
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = logic.NormalizePage(page, pageSize)

	rows, total, err := h.txs.List(logic.TransactionFilter{
		From:     c.Query("from"),
		Contract: c.Query("contract"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PageResponse{Items: rows, Total: total, Page: page, PageSize: pageSize})
}

// GetTransaction 交易详情，wait=true 时阻塞等待回执
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	hash := c.Param("hash")

	var err error
	resp := TransactionResponse{}
	if c.Query("wait") == "true" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), waitTimeout)
		defer cancel()
		resp.Transaction, err = h.txs.Wait(ctx, hash)
	} else {
		resp.Transaction, err = h.txs.Get(hash)
	}
	if err != nil {
		var data interface{}
		if resp.Transaction != nil {
			data = resp
		}
		FailResponse(c, err, data)
		return
	}

	if resp.Events, err = h.txs.Events(hash); err != nil {
		FailResponse(c, err, nil)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", resp)
}
