package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/trails-backend-go/internal/config"
	"github.com/jengzang/trails-backend-go/internal/handler"
	"github.com/jengzang/trails-backend-go/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, tracks *handler.TrackHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Owner")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Trails Backend API is running",
		})
	})

	// API 路由组
	api := r.Group("/api/v1")
	if cfg.RateLimit > 0 {
		api.Use(middleware.RateLimit(cfg.RateLimit, time.Minute))
	}
	{
		// 轨迹相关接口
		g := api.Group("/tracks")
		{
			g.GET("", tracks.ListTracks)
			g.POST("/import", tracks.ImportGPX)
			g.GET("/:id", tracks.GetTrack)
			g.GET("/:id/metadata", tracks.GetMetadata)
			g.DELETE("/:id", tracks.DeleteTrack)
			g.POST("/:id/segments/:si/remove", tracks.RemoveRange)
		}
	}

	return r
}
