package router

import (
	"context"
	"net/http"

	"github.com/Howters/ArisanOnChain-sub000/internal/handler"
	"github.com/Howters/ArisanOnChain-sub000/internal/query"
	"github.com/gin-gonic/gin"
)

// ChainHealth 链连接健康检查
type ChainHealth interface {
	GetHealthStatus(ctx context.Context) map[string]interface{}
}

// Dependencies 路由依赖
type Dependencies struct {
	Reads   query.ReadModel
	Status  handler.StatusProvider // nil when the indexer is disabled
	Chain   ChainHealth            // nil when no node connection is configured
	Metrics http.Handler           // nil disables /metrics
}

func Setup(deps Dependencies) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "arisan-indexer",
		}
		if deps.Chain != nil {
			body["chain"] = deps.Chain.GetHealthStatus(c.Request.Context())
		}
		c.JSON(http.StatusOK, body)
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// API版本组
	v1 := r.Group("/api/v1")
	{
		poolHandler := handler.NewPoolHandler(deps.Reads)
		pools := v1.Group("/pools")
		{
			pools.GET("", poolHandler.GetPools)
			pools.GET("/:id", poolHandler.GetPool)
		}

		userHandler := handler.NewUserHandler(deps.Reads)
		users := v1.Group("/users/:address")
		{
			users.GET("/debts", userHandler.GetDebts)
			users.GET("/transactions", userHandler.GetTransactions)
			users.GET("/reputation", userHandler.GetReputation)
		}

		indexerHandler := handler.NewIndexerHandler(deps.Status)
		v1.GET("/indexer/status", indexerHandler.GetStatus)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
