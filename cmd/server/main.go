package main

import (
	"context"
	"fmt"
	"log"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/api"
	"github.com/inkfold/newsletter_go_server/internal/api/handler"
	"github.com/inkfold/newsletter_go_server/internal/database"
	"github.com/inkfold/newsletter_go_server/internal/pkg/cron"
	"github.com/inkfold/newsletter_go_server/internal/pkg/email"
	"github.com/inkfold/newsletter_go_server/internal/pkg/llm"
	"github.com/inkfold/newsletter_go_server/internal/pkg/lock"
	"github.com/inkfold/newsletter_go_server/internal/pkg/oauth"
	"github.com/inkfold/newsletter_go_server/internal/pkg/oss"
	"github.com/inkfold/newsletter_go_server/internal/pkg/pubsub"
	"github.com/inkfold/newsletter_go_server/internal/pkg/ratelimit"
	"github.com/inkfold/newsletter_go_server/internal/pkg/ws"
	"github.com/inkfold/newsletter_go_server/internal/repository"
	"github.com/inkfold/newsletter_go_server/internal/service"
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

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	itemRepo := repository.NewUserItemRepository(db)
	sharedRepo := repository.NewSharedContentRepository(db)
	senderRepo := repository.NewSenderRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)

	// 初始化 Redis 组件
	publisher := pubsub.NewPublisher(rdb)
	locker := lock.NewLocker(rdb, "ai:lock")
	dailyCounter := ratelimit.NewDailyCounter(rdb, "ai:daily")

	// 初始化 Service
	emailSvc := email.NewService(&cfg.Email)
	llmClient := llm.NewClient(&cfg.AI)
	entitlementService := service.NewEntitlementService(usageRepo, userRepo, cfg)
	stateStore := oauth.NewStateStore(rdb)
	authService := service.NewAuthService(userRepo, usageRepo, emailSvc, stateStore, cfg)
	contentService := service.NewContentService(db, itemRepo, sharedRepo, senderRepo, userRepo, entitlementService, ossClient, publisher, cfg)
	summaryService := service.NewSummaryService(itemRepo, sharedRepo, entitlementService, llmClient, ossClient, locker, dailyCounter, publisher, &cfg.AI)
	billingService := service.NewBillingService(db, userRepo, webhookRepo, &cfg.Billing)
	senderService := service.NewSenderService(senderRepo, folderRepo)
	userService := service.NewUserService(userRepo, entitlementService, summaryService, ossClient, cfg)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	newsletterHandler := handler.NewNewsletterHandler(contentService)
	summaryHandler := handler.NewSummaryHandler(summaryService)
	senderHandler := handler.NewSenderHandler(senderService)
	billingHandler := handler.NewBillingHandler(billingService, &cfg.Billing)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 订阅收件箱事件，转发到 WebSocket
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(event *pubsub.InboxEvent) {
			wsHub.SendToUser(event.UserID, &ws.Message{
				Type: event.Type,
				Data: event,
			})
		})
		if err != nil {
			log.Printf("Inbox event subscription stopped: %v", err)
		}
	}()

	// 启动定时任务
	cronService := cron.NewService(webhookRepo, cfg.Billing.LedgerRetentionDays)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		userHandler,
		newsletterHandler,
		summaryHandler,
		senderHandler,
		billingHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
