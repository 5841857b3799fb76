package model

import (
	"time"
)

// WebhookEvent 已处理的支付回调事件台账。
// EventID 唯一约束即幂等闸门：插入成功代表第一次见到，冲突代表重复投递。
type WebhookEvent struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:100;uniqueIndex;not null" json:"event_id"`
	EventType string    `gorm:"size:100" json:"event_type"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
