package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	nano := time.Now().UnixNano()
	email := fmt.Sprintf("test_%d@example.com", nano)
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:       fmt.Sprintf("testuser_%d", nano%100000),
		Email:          &email,
		PasswordHash:   &passwordHash,
		Plan:           model.PlanFree,
		InboundAddress: fmt.Sprintf("testuser-%d@mail.example.com", nano),
		EmailVerified:  true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	// 用量计数器随用户创建
	if err := db.Create(&model.UsageCounters{UserID: user.ID}).Error; err != nil {
		t.Fatalf("Failed to create usage counters: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithPlan 设置套餐
func WithPlan(plan string) func(*model.User) {
	return func(u *model.User) {
		u.Plan = plan
	}
}

// WithProUntil 设置 pro 套餐及到期时间
func WithProUntil(expiresAt time.Time) func(*model.User) {
	return func(u *model.User) {
		u.Plan = model.PlanPro
		u.ProExpiresAt = &expiresAt
	}
}

// WithStripeCustomer 绑定支付客户 ID
func WithStripeCustomer(customerID string) func(*model.User) {
	return func(u *model.User) {
		u.StripeCustomerID = &customerID
	}
}

// SetUsage 直接写入用量计数器
func SetUsage(t *testing.T, db *gorm.DB, userID int64, total, unlocked, locked int) {
	t.Helper()

	err := db.Model(&model.UsageCounters{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"total_stored":    total,
		"unlocked_stored": unlocked,
		"locked_stored":   locked,
	}).Error
	if err != nil {
		t.Fatalf("Failed to set usage counters: %v", err)
	}
}

// TestSender 创建测试发件人
func TestSender(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Sender)) *model.Sender {
	t.Helper()

	nano := time.Now().UnixNano()
	sender := &model.Sender{
		UserID: userID,
		Email:  fmt.Sprintf("news_%d@letters.example.com", nano),
		Name:   "Test Newsletter",
	}

	for _, opt := range opts {
		opt(sender)
	}

	if err := db.Create(sender).Error; err != nil {
		t.Fatalf("Failed to create test sender: %v", err)
	}

	return sender
}

// WithSenderEmail 设置发件人地址
func WithSenderEmail(email string) func(*model.Sender) {
	return func(s *model.Sender) {
		s.Email = email
	}
}

// WithSenderPrivate 设置私密开关
func WithSenderPrivate(private bool) func(*model.Sender) {
	return func(s *model.Sender) {
		s.IsPrivate = private
	}
}

// TestSharedContent 创建共享池内容
func TestSharedContent(t *testing.T, db *gorm.DB, html string, opts ...func(*model.SharedContent)) *model.SharedContent {
	t.Helper()

	sum := sha256.Sum256([]byte(html))
	hash := hex.EncodeToString(sum[:])
	content := &model.SharedContent{
		ContentHash:     hash,
		BlobKey:         fmt.Sprintf("shared/%s/%s.html", hash[:2], hash),
		Subject:         "Test Subject",
		SenderEmail:     "news@letters.example.com",
		FirstReceivedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(content)
	}

	if err := db.Create(content).Error; err != nil {
		t.Fatalf("Failed to create shared content: %v", err)
	}

	return content
}

// WithSummary 预置摘要
func WithSummary(summary string, generatedAt time.Time) func(*model.SharedContent) {
	return func(c *model.SharedContent) {
		c.Summary = &summary
		c.SummaryGeneratedAt = &generatedAt
	}
}

// TestUserItem 创建用户条目（引用共享内容）
func TestUserItem(t *testing.T, db *gorm.DB, userID, senderID int64, sharedID *int64, opts ...func(*model.UserItem)) *model.UserItem {
	t.Helper()

	item := &model.UserItem{
		UserID:          userID,
		SenderID:        senderID,
		SharedContentID: sharedID,
		Subject:         "Test Subject",
		SenderEmail:     "news@letters.example.com",
		ReceivedAt:      time.Now(),
		Source:          "inbound",
	}
	if sharedID == nil {
		blobKey := fmt.Sprintf("private/%d/%d.html", userID, time.Now().UnixNano())
		item.PrivateBlobKey = &blobKey
	}

	for _, opt := range opts {
		opt(item)
	}

	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to create test item: %v", err)
	}

	return item
}

// WithLocked 设置锁定标记
func WithLocked(locked bool) func(*model.UserItem) {
	return func(i *model.UserItem) {
		i.IsLockedByPlan = locked
	}
}
