package main

import (
	"github.com/gin-gonic/gin"
	"github.com/trungbq8/openfund/internal/config"
	"github.com/trungbq8/openfund/internal/database"
	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/event"
	"github.com/trungbq8/openfund/internal/logger"
	"github.com/trungbq8/openfund/internal/repository"
	"github.com/trungbq8/openfund/internal/router"
	"github.com/trungbq8/openfund/internal/scheduler"
	"github.com/trungbq8/openfund/internal/token"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	level := logger.ParseLogLevel(cfg.Log.Level)
	if cfg.Log.Output == "file" {
		l, err := logger.NewWithFileRotation(level, cfg.Log.File)
		if err != nil {
			logger.Fatal("Failed to initialize file logger: %v", err)
		}
		logger.SetDefaultLogger(l)
	} else {
		l, err := logger.New(level)
		if err != nil {
			logger.Fatal("Failed to initialize logger: %v", err)
		}
		logger.SetDefaultLogger(l)
	}

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	repo := repository.New(db)

	// 初始化资产服务
	var funding token.Service
	var rewards token.Provider
	switch cfg.Chain.Mode {
	case "erc20":
		provider, err := token.NewERC20Provider(cfg.Chain.RpcUrl, cfg.Chain.PrivateKey, cfg.Chain.ChainId)
		if err != nil {
			logger.Fatal("Failed to initialize erc20 provider: %v", err)
		}
		funding, err = provider.Token(cfg.Chain.FundingToken)
		if err != nil {
			logger.Fatal("Failed to resolve funding token: %v", err)
		}
		rewards = provider
		logger.Info("Asset mode: erc20, custody account %s", provider.Custody())
	default:
		provider := token.NewMemoryProvider()
		funding = provider.Ledger(cfg.Chain.FundingToken)
		rewards = provider
		logger.Info("Asset mode: memory")
	}

	// 初始化事件分发器
	dispatcher, err := event.NewDispatcher(repo, 4)
	if err != nil {
		logger.Fatal("Failed to initialize event dispatcher: %v", err)
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	// 初始化结算引擎并从镜像库恢复状态
	eng := engine.New(cfg.Engine.AdminAddress, funding, rewards, dispatcher)
	snap, err := repo.LoadSnapshot()
	if err != nil {
		logger.Fatal("Failed to load engine snapshot: %v", err)
	}
	eng.Restore(snap)
	logger.Info("Engine restored with %d projects and %d investments",
		len(snap.Projects), len(snap.Investments))

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(eng, repo)

	// 启动定时任务
	manager := scheduler.Start(eng, repo, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
