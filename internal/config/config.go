package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	Port         string
	DBPath       string
	RateLimit    int    // 每个 IP 每分钟最大请求数，0 表示不限制
	DefaultOwner string // 请求未指定 owner 时使用
}

// Load 加载配置，先读取可选的 .env 文件
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}
	return FromEnv()
}

// FromEnv 从环境变量读取配置
func FromEnv() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/trails.db"
	}

	rateLimit := 120
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Printf("Warning: invalid RATE_LIMIT %q, using %d", v, rateLimit)
		} else {
			rateLimit = n
		}
	}

	owner := os.Getenv("DEFAULT_OWNER")
	if owner == "" {
		owner = "local"
	}

	return &Config{
		Port:         port,
		DBPath:       dbPath,
		RateLimit:    rateLimit,
		DefaultOwner: owner,
	}
}
