package handler

import (
	"net/http"

	"github.com/blues/crowdchain/internal/display"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	wallet *wallet.Wallet
}

func NewWalletHandler(app *App) *WalletHandler {
	return &WalletHandler{wallet: app.Wallet}
}

func walletState(w *wallet.Wallet) WalletResponse {
	state := WalletResponse{Connected: w.Connected(), HasCredentials: w.HasCredentials()}
	if state.Connected {
		state.Address = w.Address().Hex()
		state.AddressShort = display.TruncateAddress(state.Address)
	}
	return state
}

// viewerOf 查询参数 viewer 优先，其次为已连接的钱包地址
func viewerOf(c *gin.Context, w *wallet.Wallet) (common.Address, error) {
	if q := c.Query("viewer"); q != "" {
		return logic.ParseAddress(q)
	}
	if w.Connected() {
		return w.Address(), nil
	}
	return common.Address{}, nil
}

// GetWallet 钱包状态
func (h *WalletHandler) GetWallet(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "ok", walletState(h.wallet))
}

// Connect 使用配置的凭据连接钱包
func (h *WalletHandler) Connect(c *gin.Context) {
	if err := h.wallet.Connect(); err != nil {
		FailResponse(c, err, nil)
		return
	}
	SuccessResponse(c, http.StatusOK, "钱包已连接", walletState(h.wallet))
}

// Disconnect 断开钱包
func (h *WalletHandler) Disconnect(c *gin.Context) {
	h.wallet.Disconnect()
	SuccessResponse(c, http.StatusOK, "钱包已断开", walletState(h.wallet))
}
