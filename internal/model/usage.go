package model

import (
	"time"
)

// UsageCounters 每用户一行的存储计数器。
// 不变式：TotalStored = UnlockedStored + LockedStored。
// 只在入库时由 entitlement 服务在事务内修改。
type UsageCounters struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalStored    int       `gorm:"not null;default:0" json:"total_stored"`
	UnlockedStored int       `gorm:"not null;default:0" json:"unlocked_stored"`
	LockedStored   int       `gorm:"not null;default:0" json:"locked_stored"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UsageCounters) TableName() string {
	return "usage_counters"
}
