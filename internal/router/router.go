package router

import (
	"github.com/gin-gonic/gin"
	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/handler"
	"github.com/trungbq8/openfund/internal/repository"
)

func Setup(e *engine.Engine, repo *repository.Repository) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "openfund",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		fundHandler := handler.NewFundHandler(e, repo)

		// 项目相关路由
		projects := v1.Group("/projects")
		{
			projects.POST("", fundHandler.CreateProject)
			projects.GET("", fundHandler.ListProjects)
			projects.GET("/:id", fundHandler.GetProject)
			projects.POST("/:id/deposit", fundHandler.DepositTokens)
			projects.POST("/:id/invest", fundHandler.Invest)
			projects.POST("/:id/vote", fundHandler.VoteForRefund)
			projects.POST("/:id/refund", fundHandler.GetRefund)
			projects.POST("/:id/claim-funds", fundHandler.ClaimFunds)
			projects.POST("/:id/claim-fee", fundHandler.ClaimPlatformFee)
			projects.POST("/:id/claim-unsold", fundHandler.ClaimUnsoldTokens)
			projects.GET("/:id/investments", fundHandler.ListInvestments)
			projects.GET("/:id/investments/:address", fundHandler.GetInvestment)
			projects.GET("/:id/refunds", fundHandler.ListRefunds)
		}

		// 投资人相关路由
		investors := v1.Group("/investors")
		{
			investors.GET("/:address/projects", fundHandler.GetInvestorProjects)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
