package model

import (
	"time"
)

// 套餐常量
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

type User struct {
	ID                    int64      `gorm:"primaryKey" json:"id"`
	Username              string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email                 *string    `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash          *string    `gorm:"size:255" json:"-"`
	AvatarURL             string     `gorm:"size:500" json:"avatar_url"`
	GithubID              *string    `gorm:"column:github_id;size:50;uniqueIndex" json:"-"`
	Plan                  string     `gorm:"size:20;default:free" json:"plan"`
	ProExpiresAt          *time.Time `json:"pro_expires_at,omitempty"`
	StripeCustomerID      *string    `gorm:"size:100;uniqueIndex" json:"-"`
	StripeSubscriptionID  *string    `gorm:"size:100" json:"-"`
	InboundAddress        string     `gorm:"size:100;uniqueIndex" json:"inbound_address"`
	EmailVerified         bool       `gorm:"default:false" json:"email_verified"`
	VerificationCode      *string    `gorm:"size:100" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// EffectivePlan 返回当前生效的套餐。pro 到期后按 free 处理，
// 不依赖后台任务回写字段（见 billing 服务的惰性过期策略）。
func (u *User) EffectivePlan(now time.Time) string {
	if u.Plan == PlanPro && u.ProExpiresAt != nil && now.After(*u.ProExpiresAt) {
		return PlanFree
	}
	return u.Plan
}
