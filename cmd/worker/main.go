package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/database"
	"github.com/inkfold/newsletter_go_server/internal/pkg/oss"
	"github.com/inkfold/newsletter_go_server/internal/pkg/pubsub"
	"github.com/inkfold/newsletter_go_server/internal/pkg/queue"
	"github.com/inkfold/newsletter_go_server/internal/repository"
	"github.com/inkfold/newsletter_go_server/internal/service"
	"github.com/inkfold/newsletter_go_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS
	ossClient, err := oss.NewClient(&cfg.OSS)
	if err != nil {
		log.Fatalf("Failed to init OSS client: %v", err)
	}
	log.Println("OSS client initialized")

	// 初始化 Queue 和 Pub/Sub
	ingestQueue := queue.NewQueue(rdb, cfg.Queue.IngestQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	itemRepo := repository.NewUserItemRepository(db)
	sharedRepo := repository.NewSharedContentRepository(db)
	senderRepo := repository.NewSenderRepository(db)

	// 组装入库服务
	entitlementService := service.NewEntitlementService(usageRepo, userRepo, cfg)
	contentService := service.NewContentService(db, itemRepo, sharedRepo, senderRepo, userRepo, entitlementService, ossClient, publisher, cfg)

	// 创建入库处理器
	processor := worker.NewProcessor(contentService)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取消息
					msg, err := ingestQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop message: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing message for user %d", workerID, msg.UserID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: processing failed: %v", workerID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
