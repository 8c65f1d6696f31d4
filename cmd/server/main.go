package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/config"
	"github.com/blues/crowdchain/internal/database"
	"github.com/blues/crowdchain/internal/handler"
	"github.com/blues/crowdchain/internal/logger"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/monitoring"
	"github.com/blues/crowdchain/internal/router"
	"github.com/blues/crowdchain/internal/task"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := logger.Setup(cfg.Log); err != nil {
		logger.Fatal("%v", err)
	}
	defer logger.Sync()

	if err := monitoring.Init(cfg.Sentry); err != nil {
		logger.Warn("Sentry disabled: %v", err)
	}
	defer monitoring.Flush()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	defer database.Close(db)

	// 初始化链连接与合约
	manager, err := chain.NewManager(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain manager: %v", err)
	}
	defer manager.Close()
	logger.Info("Connected to %s (chain id %s)", manager.Network().Name, manager.ChainID())

	w := wallet.New(cfg.Wallet)
	if cfg.Wallet.AutoConnect && w.HasCredentials() {
		if err := w.Connect(); err != nil {
			logger.Warn("Wallet auto connect failed: %v", err)
		} else {
			logger.Info("Wallet connected: %s", w.Address().Hex())
		}
	}
	adapter := chain.NewAdapter(manager.GetBackend(), w, manager.ChainID())

	pool, err := ants.NewPool(cfg.Task.PoolSize)
	if err != nil {
		logger.Fatal("Failed to create worker pool: %v", err)
	}
	defer pool.Release()

	txs := logic.NewTransactionLogic(db, manager, adapter)
	factory := logic.NewFactoryLogic(manager, adapter, txs, pool)
	campaigns := logic.NewCampaignLogic(manager, adapter, txs, pool)
	app := &handler.App{
		DB:        db,
		Manager:   manager,
		Wallet:    w,
		Factory:   factory,
		Campaigns: campaigns,
		Tokens:    logic.NewTokenLogic(manager, adapter, txs, pool),
		Txs:       txs,
		Index:     logic.NewCampaignIndexLogic(db, factory, campaigns, pool, manager.ChainID().Int64()),
	}

	// 启动定时任务
	tasks, err := task.NewManager(cfg.Task, app.Txs, app.Index)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := tasks.Start(); err != nil {
		logger.Fatal("Failed to start tasks: %v", err)
	}
	defer tasks.Stop()

	// 初始化路由
	r, err := router.Setup(cfg, app)
	if err != nil {
		logger.Fatal("Failed to setup router: %v", err)
	}

	srv := &http.Server{
		Addr:     ":" + cfg.Server.Port,
		Handler:  r,
		ErrorLog: zap.NewStdLog(logger.GetDefaultZapLogger()),
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
}
