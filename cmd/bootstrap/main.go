package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"storyteller-api/internal/config"
	"storyteller-api/internal/wire"
	"storyteller-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format, "service", "bootstrap", "env", cfg.App.Env)

	ctx := context.Background()

	// 2. 初始化数据层（仅 PostgreSQL）
	deps, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 建表
	fmt.Println("Migrating schema...")
	if err := deps.Postgres.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 4. 写入配置中的文本生成后端，已存在的同名后端保持不变
	fmt.Printf("Seeding %d llm providers...\n", len(cfg.LLM.Providers))
	if err := deps.Providers.Seed(ctx, cfg.LLM.Providers); err != nil {
		log.Fatalf("failed to seed providers: %v", err)
	}

	fmt.Println("Bootstrap completed successfully.")
}
