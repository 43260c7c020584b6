package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/jengzang/trails-backend-go/internal/api"
	"github.com/jengzang/trails-backend-go/internal/config"
	"github.com/jengzang/trails-backend-go/internal/database"
	"github.com/jengzang/trails-backend-go/internal/handler"
	"github.com/jengzang/trails-backend-go/internal/repository"
	"github.com/jengzang/trails-backend-go/internal/service"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化数据库
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatal("Failed to create database directory:", err)
	}
	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	trackRepo := repository.NewTrackRepository(database.GetDB())
	trackService := service.NewTrackService(trackRepo)
	trackHandler := handler.NewTrackHandler(trackService, cfg.DefaultOwner)

	// 初始化路由
	router := api.SetupRouter(cfg, trackHandler)

	// 启动服务器
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
