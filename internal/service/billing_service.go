package service

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/model"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/repository"
)

var (
	ErrBillingNotConfigured = errors.New("支付服务未配置")
	ErrCustomerUnknown      = errors.New("未知的支付客户")
	ErrNoStripeCustomer     = errors.New("用户尚未绑定支付账户")
)

// BillingService 订阅状态对账。
// webhook 按 at-least-once 投递，事件账本保证每个 eventID 只生效一次。
type BillingService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	webhookRepo *repository.WebhookRepository
	cfg         *config.BillingConfig
}

func NewBillingService(db *gorm.DB, userRepo *repository.UserRepository, webhookRepo *repository.WebhookRepository, cfg *config.BillingConfig) *BillingService {
	stripe.Key = cfg.StripeSecretKey
	return &BillingService{
		db:          db,
		userRepo:    userRepo,
		webhookRepo: webhookRepo,
		cfg:         cfg,
	}
}

// RecordEventIfNew 把事件写入幂等账本，在调用方事务内执行。
// 首次见到该 eventID 返回 true；重复投递返回 false，调用方应直接 ACK 跳过。
func (s *BillingService) RecordEventIfNew(tx *gorm.DB, eventID, eventType string) (bool, error) {
	return s.webhookRepo.InsertIfNew(tx, eventID, eventType)
}

// ApplySubscriptionUpdate 把订阅事件落到用户套餐上，在调用方事务内执行。
// 只看 currentPeriodEnd 是否在未来，不看 status：已取消但周期未到期的订阅
// 仍算 pro（宽限期），到期后自然降级。
func (s *BillingService) ApplySubscriptionUpdate(tx *gorm.DB, update *dto.SubscriptionUpdate) error {
	user, err := s.userRepo.GetByStripeCustomerID(tx, update.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCustomerUnknown
		}
		return err
	}

	now := time.Now()
	if update.CurrentPeriodEnd.After(now) {
		expiresAt := update.CurrentPeriodEnd
		subID := update.SubscriptionID
		if err := s.userRepo.SetPlan(tx, user.ID, model.PlanPro, &expiresAt, &subID); err != nil {
			return err
		}
		log.Printf("billing: user %d -> pro until %s (event %s, status %s)",
			user.ID, expiresAt.Format(time.RFC3339), update.EventID, update.Status)
		return nil
	}

	if err := s.userRepo.SetPlan(tx, user.ID, model.PlanFree, nil, nil); err != nil {
		return err
	}
	log.Printf("billing: user %d -> free (event %s, period end %s)",
		user.ID, update.EventID, update.CurrentPeriodEnd.Format(time.RFC3339))
	return nil
}

// HandleSubscriptionEvent 幂等入口。账本写入和套餐变更在同一事务里提交：
// 套餐落库失败时账本一并回滚，Stripe 重投还能重新生效。
// 重复事件返回 nil，让 webhook handler 正常回 200。
func (s *BillingService) HandleSubscriptionEvent(update *dto.SubscriptionUpdate) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		isNew, err := s.RecordEventIfNew(tx, update.EventID, update.EventType)
		if err != nil {
			return err
		}
		if !isNew {
			log.Printf("billing: duplicate event %s ignored", update.EventID)
			return nil
		}

		return s.ApplySubscriptionUpdate(tx, update)
	})
}

// CreateCheckoutSession 发起 pro 订阅支付，返回跳转地址。
// 用户没有 Stripe 客户时先创建并回写。
func (s *BillingService) CreateCheckoutSession(userID int64) (*dto.CheckoutSessionResponse, error) {
	if s.cfg.StripeSecretKey == "" || s.cfg.PriceIDProMonthly == "" {
		return nil, ErrBillingNotConfigured
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureStripeCustomer(user)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PriceIDProMonthly),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.FrontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.cfg.FrontendURL + "/billing/cancel"),
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutSessionResponse{URL: sess.URL}, nil
}

// CreatePortalSession 订阅管理门户（改卡、退订）
func (s *BillingService) CreatePortalSession(userID int64) (*dto.BillingPortalResponse, error) {
	if s.cfg.StripeSecretKey == "" {
		return nil, ErrBillingNotConfigured
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, ErrNoStripeCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.FrontendURL + "/settings/billing"),
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, err
	}

	return &dto.BillingPortalResponse{URL: sess.URL}, nil
}

func (s *BillingService) ensureStripeCustomer(user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{}
	if user.Email != nil {
		params.Email = stripe.String(*user.Email)
	}
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"stripe_customer_id": cust.ID,
	}); err != nil {
		return "", err
	}

	return cust.ID, nil
}
