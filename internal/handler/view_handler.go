package handler

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/display"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/model"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates 解析内置的 HTML 模板
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"truncate": display.TruncateAddress,
	}).ParseFS(templateFS, "templates/*.tmpl")
}

// ViewHandler 服务端渲染的列表页与详情页，未连接钱包时只显示连接页
type ViewHandler struct {
	manager   *chain.Manager
	wallet    *wallet.Wallet
	factory   *logic.FactoryLogic
	campaigns *logic.CampaignLogic
}

func NewViewHandler(app *App) *ViewHandler {
	return &ViewHandler{manager: app.Manager, wallet: app.Wallet, factory: app.Factory, campaigns: app.Campaigns}
}

func (h *ViewHandler) page(c *gin.Context, title string) gin.H {
	return gin.H{
		"Title":   title,
		"Network": h.manager.Registry().ByChainId(h.manager.ChainID().Int64()),
		"Wallet":  walletState(h.wallet),
		"Tx":      c.Query("tx"),
		"Error":   c.Query("error"),
	}
}

// requireWallet 未连接时渲染连接页并返回 false
func (h *ViewHandler) requireWallet(c *gin.Context) bool {
	if h.wallet.Connected() {
		return true
	}
	data := h.page(c, "连接钱包")
	data["Next"] = c.Request.URL.Path
	data["WalletConnectProjectId"] = h.manager.WalletConnectProjectId()
	c.HTML(http.StatusOK, "connect.tmpl", data)
	return false
}

// Index 列表页
func (h *ViewHandler) Index(c *gin.Context) {
	if !h.requireWallet(c) {
		return
	}
	overview, err := h.factory.Overview(c.Request.Context(), h.wallet.Address())
	if err != nil {
		h.renderError(c, err)
		return
	}
	data := h.page(c, "众筹活动")
	data["Overview"] = overview
	c.HTML(http.StatusOK, "index.tmpl", data)
}

// Campaign 详情页
func (h *ViewHandler) Campaign(c *gin.Context) {
	if !h.requireWallet(c) {
		return
	}
	detail, err := h.campaigns.Detail(c.Request.Context(), c.Param("address"), h.wallet.Address())
	if err != nil {
		h.renderError(c, err)
		return
	}
	data := h.page(c, detail.Name)
	data["Detail"] = detail
	c.HTML(http.StatusOK, "campaign.tmpl", data)
}

func (h *ViewHandler) renderError(c *gin.Context, err error) {
	data := h.page(c, "出错了")
	data["Error"] = err.Error()
	c.HTML(StatusFor(err), "error.tmpl", data)
}

// redirect 提交后跳回页面，带上交易哈希或错误信息
func redirect(c *gin.Context, path string, record *model.TransactionModel, err error) {
	q := url.Values{}
	if record != nil {
		q.Set("tx", record.Hash)
	}
	if err != nil {
		q.Set("error", err.Error())
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	c.Redirect(http.StatusSeeOther, path)
}

// ConnectWallet 表单连接钱包
func (h *ViewHandler) ConnectWallet(c *gin.Context) {
	next := c.PostForm("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	redirect(c, next, nil, h.wallet.Connect())
}

// DisconnectWallet 表单断开钱包
func (h *ViewHandler) DisconnectWallet(c *gin.Context) {
	h.wallet.Disconnect()
	redirect(c, "/", nil, nil)
}

// CreateCampaign 表单创建活动
func (h *ViewHandler) CreateCampaign(c *gin.Context) {
	var req logic.CreateCampaignRequest
	if err := c.ShouldBind(&req); err != nil {
		redirect(c, "/", nil, err)
		return
	}
	record, err := h.factory.CreateCampaign(c.Request.Context(), req)
	redirect(c, "/", record, err)
}

// TogglePause 表单切换暂停
func (h *ViewHandler) TogglePause(c *gin.Context) {
	record, err := h.factory.TogglePause(c.Request.Context())
	redirect(c, "/", record, err)
}

// Fund 表单资助
func (h *ViewHandler) Fund(c *gin.Context) {
	address := c.Param("address")
	back := "/campaign/" + address
	index, err := strconv.Atoi(c.PostForm("tierIndex"))
	if err != nil {
		redirect(c, back, nil, err)
		return
	}
	record, err := h.campaigns.Fund(c.Request.Context(), address, index)
	redirect(c, back, record, err)
}

// AddTier 表单添加档位
func (h *ViewHandler) AddTier(c *gin.Context) {
	address := c.Param("address")
	record, err := h.campaigns.AddTier(c.Request.Context(), address, c.PostForm("name"), c.PostForm("amount"))
	redirect(c, "/campaign/"+address, record, err)
}

// RemoveTier 表单删除档位
func (h *ViewHandler) RemoveTier(c *gin.Context) {
	address := c.Param("address")
	back := "/campaign/" + address
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		redirect(c, back, nil, err)
		return
	}
	record, err := h.campaigns.RemoveTier(c.Request.Context(), address, index)
	redirect(c, back, record, err)
}
