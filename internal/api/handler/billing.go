package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/api/middleware"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/pkg/response"
	"github.com/inkfold/newsletter_go_server/internal/service"
)

type BillingHandler struct {
	billingService *service.BillingService
	cfg            *config.BillingConfig
}

func NewBillingHandler(billingService *service.BillingService, cfg *config.BillingConfig) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		cfg:            cfg,
	}
}

// CreateCheckout 发起订阅支付
// POST /api/v1/billing/checkout
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.billingService.CreateCheckoutSession(userID)
	if err != nil {
		if errors.Is(err, service.ErrBillingNotConfigured) {
			response.ServerError(c, err.Error())
			return
		}
		log.Printf("checkout session failed for user %d: %v", userID, err)
		response.ServerError(c, "支付会话创建失败")
		return
	}

	response.Success(c, resp)
}

// CreatePortal 订阅管理门户
// POST /api/v1/billing/portal
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.billingService.CreatePortalSession(userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBillingNotConfigured):
			response.ServerError(c, err.Error())
		case errors.Is(err, service.ErrNoStripeCustomer):
			response.ParamError(c, err.Error())
		default:
			log.Printf("portal session failed for user %d: %v", userID, err)
			response.ServerError(c, "门户会话创建失败")
		}
		return
	}

	response.Success(c, resp)
}

// Webhook 支付回调。验签后按事件账本幂等应用订阅变更。
// POST /api/v1/billing/webhook（不走 JWT 认证，Stripe 直接调用）
func (h *BillingHandler) Webhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if h.cfg.WebhookSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		h.cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Printf("stripe subscription unmarshal failed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription payload"})
			return
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			log.Printf("stripe subscription missing customer id, event %s", event.ID)
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing customer id"})
			return
		}

		update := &dto.SubscriptionUpdate{
			EventID:          event.ID,
			EventType:        string(event.Type),
			CustomerID:       sub.Customer.ID,
			SubscriptionID:   sub.ID,
			Status:           string(sub.Status),
			CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0),
		}

		if err := h.billingService.HandleSubscriptionEvent(update); err != nil {
			if errors.Is(err, service.ErrCustomerUnknown) {
				// 不认识的客户不重试，记日志后 ACK
				log.Printf("stripe event %s for unknown customer %s", event.ID, sub.Customer.ID)
				break
			}
			log.Printf("stripe subscription apply failed, event %s: %v", event.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply event"})
			return
		}
	default:
		// 其他事件类型直接确认
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
