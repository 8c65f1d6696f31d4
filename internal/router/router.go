package router

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blues/crowdchain/internal/config"
	"github.com/blues/crowdchain/internal/handler"
	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Setup(cfg *config.Config, app *handler.App) (*gin.Engine, error) {
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.RecoveryWithWriter(zap.NewStdLog(logger.GetDefaultZapLogger()).Writer()))
	r.Use(sameOrigin(cfg.Server.CorsOrigins))
	if len(cfg.Server.CorsOrigins) > 0 {
		r.Use(corsMiddleware(cfg.Server.CorsOrigins))
	}
	if cfg.Metrics.Enabled {
		r.Use(metrics.Middleware())
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}

	tmpl, err := handler.Templates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	walletHandler := handler.NewWalletHandler(app)
	chainHandler := handler.NewChainHandler(app)
	factoryHandler := handler.NewFactoryHandler(app)
	campaignHandler := handler.NewCampaignHandler(app)
	tokenHandler := handler.NewTokenHandler(app)
	txHandler := handler.NewTransactionHandler(app)
	viewHandler := handler.NewViewHandler(app)

	// 页面
	r.GET("/", viewHandler.Index)
	r.GET("/campaign/:address", viewHandler.Campaign)
	r.POST("/wallet/connect", viewHandler.ConnectWallet)
	r.POST("/wallet/disconnect", viewHandler.DisconnectWallet)
	r.POST("/campaigns", viewHandler.CreateCampaign)
	r.POST("/pause", viewHandler.TogglePause)
	r.POST("/campaign/:address/fund", viewHandler.Fund)
	r.POST("/campaign/:address/tiers", viewHandler.AddTier)
	r.POST("/campaign/:address/tiers/:index/delete", viewHandler.RemoveTier)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", chainHandler.Health)
		v1.GET("/chain", chainHandler.GetChain)

		wallet := v1.Group("/wallet")
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.POST("", walletHandler.Connect)
			wallet.DELETE("", walletHandler.Disconnect)
		}

		factory := v1.Group("/factory")
		{
			factory.GET("", factoryHandler.GetFactory)
			factory.GET("/campaigns", factoryHandler.GetCampaigns)
			factory.POST("/campaigns", factoryHandler.CreateCampaign)
			factory.POST("/pause", factoryHandler.TogglePause)
		}

		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("/index", campaignHandler.GetIndex)
			campaigns.GET("/:address", campaignHandler.GetCampaign)
			campaigns.POST("/:address/fund", campaignHandler.Fund)
			campaigns.GET("/:address/tiers", campaignHandler.GetTiers)
			campaigns.POST("/:address/tiers", campaignHandler.AddTier)
			campaigns.DELETE("/:address/tiers/:index", campaignHandler.RemoveTier)
		}

		token := v1.Group("/token")
		{
			token.GET("", tokenHandler.GetToken)
			token.POST("/transfer", tokenHandler.Transfer)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.GET("", txHandler.GetTransactions)
			transactions.GET("/:hash", txHandler.GetTransaction)
		}
	}

	return r, nil
}

// CORS中间件，"*" 只放开跨域读取，写请求仍由 sameOrigin 限制
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// sameOrigin 拒绝其他站点发起的写请求，来源取 Origin，缺失时取 Referer。
// 两者都没有的请求（非浏览器客户端）放行。
func sameOrigin(origins []string) gin.HandlerFunc {
	trusted := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o != "*" {
			trusted[strings.ToLower(strings.TrimRight(o, "/"))] = true
		}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		source := c.GetHeader("Origin")
		if source == "" {
			source = c.GetHeader("Referer")
		}
		if source == "" {
			c.Next()
			return
		}

		u, err := url.Parse(source)
		if err == nil && u.Host != "" {
			if strings.EqualFold(u.Host, c.Request.Host) || trusted[strings.ToLower(u.Scheme+"://"+u.Host)] {
				c.Next()
				return
			}
		}

		logger.Warn("Rejected cross-origin %s %s from %q", c.Request.Method, c.Request.URL.Path, source)
		c.AbortWithStatusJSON(http.StatusForbidden, handler.Response{
			Success: false,
			Message: "cross-origin request rejected",
		})
	}
}

// requestLogger 使用 zap 记录请求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		l := logger.With(
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
		switch {
		case status >= 500:
			l.Error("%s %s", c.Request.Method, c.Request.URL.Path)
		case status >= 400:
			l.Warn("%s %s", c.Request.Method, c.Request.URL.Path)
		default:
			l.Debug("%s %s", c.Request.Method, c.Request.URL.Path)
		}
	}
}
