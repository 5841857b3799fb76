package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/model"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/repository"
	"github.com/inkfold/newsletter_go_server/internal/testutil"
)

func newBillingService(db *gorm.DB) *BillingService {
	return NewBillingService(
		db,
		repository.NewUserRepository(db),
		repository.NewWebhookRepository(db),
		&config.BillingConfig{FrontendURL: "https://app.inkfold.io"},
	)
}

func subscriptionUpdate(customerID string, periodEnd time.Time, status string) *dto.SubscriptionUpdate {
	return &dto.SubscriptionUpdate{
		EventID:          "evt_test_001",
		EventType:        "customer.subscription.updated",
		CustomerID:       customerID,
		SubscriptionID:   "sub_test_001",
		Status:           status,
		CurrentPeriodEnd: periodEnd,
	}
}

func TestBillingService_RecordEventIfNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)

	isNew, err := service.RecordEventIfNew(db, "evt_abc", "customer.subscription.updated")
	require.NoError(t, err)
	assert.True(t, isNew)

	// 同一 eventID 第二次入账本返回 false
	isNew, err = service.RecordEventIfNew(db, "evt_abc", "customer.subscription.updated")
	require.NoError(t, err)
	assert.False(t, isNew)

	// 不同 eventID 互不影响
	isNew, err = service.RecordEventIfNew(db, "evt_def", "customer.subscription.deleted")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestBillingService_ApplySubscriptionUpdate_Upgrade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)
	user := testutil.TestUser(t, db, testutil.WithStripeCustomer("cus_upgrade"))

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	err := service.ApplySubscriptionUpdate(db, subscriptionUpdate("cus_upgrade", periodEnd, "active"))
	require.NoError(t, err)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, updated.Plan)
	require.NotNil(t, updated.ProExpiresAt)
	assert.WithinDuration(t, periodEnd, *updated.ProExpiresAt, time.Second)
	require.NotNil(t, updated.StripeSubscriptionID)
	assert.Equal(t, "sub_test_001", *updated.StripeSubscriptionID)
}

func TestBillingService_ApplySubscriptionUpdate_CanceledInGracePeriod(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)
	user := testutil.TestUser(t, db, testutil.WithStripeCustomer("cus_grace"))

	// 已取消但周期未走完：仍保持 pro 到周期结束
	periodEnd := time.Now().Add(7 * 24 * time.Hour)
	err := service.ApplySubscriptionUpdate(db, subscriptionUpdate("cus_grace", periodEnd, "canceled"))
	require.NoError(t, err)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, updated.Plan)
	require.NotNil(t, updated.ProExpiresAt)
}

func TestBillingService_ApplySubscriptionUpdate_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)
	user := testutil.TestUser(t, db,
		testutil.WithStripeCustomer("cus_expired"),
		testutil.WithProUntil(time.Now().Add(24*time.Hour)))

	// 周期已结束，降回 free 并清空到期时间
	periodEnd := time.Now().Add(-time.Hour)
	err := service.ApplySubscriptionUpdate(db, subscriptionUpdate("cus_expired", periodEnd, "canceled"))
	require.NoError(t, err)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, updated.Plan)
	assert.Nil(t, updated.ProExpiresAt)
	assert.Nil(t, updated.StripeSubscriptionID)
}

func TestBillingService_ApplySubscriptionUpdate_UnknownCustomer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)

	err := service.ApplySubscriptionUpdate(db, subscriptionUpdate("cus_nobody", time.Now().Add(time.Hour), "active"))
	assert.Equal(t, ErrCustomerUnknown, err)
}

func TestBillingService_HandleSubscriptionEvent_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)
	user := testutil.TestUser(t, db, testutil.WithStripeCustomer("cus_idem"))

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	update := subscriptionUpdate("cus_idem", periodEnd, "active")

	require.NoError(t, service.HandleSubscriptionEvent(update))

	// 手动改掉套餐，验证重复事件不再生效
	require.NoError(t, repository.NewUserRepository(db).SetPlan(db, user.ID, model.PlanFree, nil, nil))

	require.NoError(t, service.HandleSubscriptionEvent(update))

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, updated.Plan)
}

func TestBillingService_HandleSubscriptionEvent_FailedApplyRollsBackLedger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	update := subscriptionUpdate("cus_retry", periodEnd, "active")

	// 套餐变更失败时账本一并回滚，事件没有被"吞掉"
	err := service.HandleSubscriptionEvent(update)
	assert.Equal(t, ErrCustomerUnknown, err)

	exists, err := repository.NewWebhookRepository(db).Exists(update.EventID)
	require.NoError(t, err)
	assert.False(t, exists)

	// 客户补绑后重投同一事件仍能生效
	user := testutil.TestUser(t, db, testutil.WithStripeCustomer("cus_retry"))
	require.NoError(t, service.HandleSubscriptionEvent(update))

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, updated.Plan)

	exists, err = repository.NewWebhookRepository(db).Exists(update.EventID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBillingService_CreateCheckoutSession_NotConfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := newBillingService(db)
	user := testutil.TestUser(t, db)

	_, err := service.CreateCheckoutSession(user.ID)
	assert.Equal(t, ErrBillingNotConfigured, err)
}

func TestBillingService_CreatePortalSession_NoCustomer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := NewBillingService(
		db,
		repository.NewUserRepository(db),
		repository.NewWebhookRepository(db),
		&config.BillingConfig{StripeSecretKey: "sk_test_dummy", FrontendURL: "https://app.inkfold.io"},
	)
	user := testutil.TestUser(t, db)

	_, err := service.CreatePortalSession(user.ID)
	assert.Equal(t, ErrNoStripeCustomer, err)
}
