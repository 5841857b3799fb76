package api

import (
	"github.com/gin-gonic/gin"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/api/handler"
	"github.com/inkfold/newsletter_go_server/internal/api/middleware"
)

type Router struct {
	authHandler       *handler.AuthHandler
	userHandler       *handler.UserHandler
	newsletterHandler *handler.NewsletterHandler
	summaryHandler    *handler.SummaryHandler
	senderHandler     *handler.SenderHandler
	billingHandler    *handler.BillingHandler
	websocketHandler  *handler.WebSocketHandler
	cfg               *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	newsletterHandler *handler.NewsletterHandler,
	summaryHandler *handler.SummaryHandler,
	senderHandler *handler.SenderHandler,
	billingHandler *handler.BillingHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:       authHandler,
		userHandler:       userHandler,
		newsletterHandler: newsletterHandler,
		summaryHandler:    summaryHandler,
		senderHandler:     senderHandler,
		billingHandler:    billingHandler,
		websocketHandler:  websocketHandler,
		cfg:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/verify-email", r.authHandler.VerifyEmail)
			auth.GET("/github", r.authHandler.GithubAuth)
			auth.GET("/github/callback", r.authHandler.GithubCallback)
		}

		// 公开接口 - 支付回调（Stripe 签名验证代替 JWT）
		api.POST("/billing/webhook", r.billingHandler.Webhook)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
				user.POST("/avatar", r.userHandler.UploadAvatar)
				user.GET("/usage", r.userHandler.GetUsage)
				user.GET("/ai-usage", r.summaryHandler.GetUsage)
			}

			// 收件箱
			newsletters := authenticated.Group("/newsletters")
			{
				newsletters.GET("", r.newsletterHandler.List)
				newsletters.GET("/:id", r.newsletterHandler.Get)
				newsletters.POST("/import", r.newsletterHandler.Import)
				newsletters.POST("/:id/summary", r.summaryHandler.Generate)
			}

			// 发件人与文件夹
			authenticated.GET("/senders", r.senderHandler.ListSenders)
			authenticated.PUT("/senders/:id", r.senderHandler.UpdateSender)
			authenticated.GET("/folders", r.senderHandler.ListFolders)
			authenticated.POST("/folders", r.senderHandler.CreateFolder)
			authenticated.DELETE("/folders/:id", r.senderHandler.DeleteFolder)

			// 订阅支付
			billing := authenticated.Group("/billing")
			{
				billing.POST("/checkout", r.billingHandler.CreateCheckout)
				billing.POST("/portal", r.billingHandler.CreatePortal)
			}
		}
	}

	return engine
}
