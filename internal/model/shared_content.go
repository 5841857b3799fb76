package model

import (
	"time"
)

// SharedContent 公开邮件的共享内容池，按归一化 HTML 的哈希去重。
// 同一哈希只保留一份 OSS 对象，ReaderCount 等于引用它的 UserItem 数。
type SharedContent struct {
	ID                 int64      `gorm:"primaryKey" json:"id"`
	ContentHash        string     `gorm:"size:64;uniqueIndex;not null" json:"content_hash"`
	BlobKey            string     `gorm:"size:500;not null" json:"blob_key"`
	Subject            string     `gorm:"size:500" json:"subject"`
	SenderEmail        string     `gorm:"size:200;index" json:"sender_email"`
	SenderName         string     `gorm:"size:200" json:"sender_name"`
	FirstReceivedAt    time.Time  `json:"first_received_at"`
	ReaderCount        int        `gorm:"not null;default:0" json:"reader_count"`
	Summary            *string    `gorm:"type:text" json:"summary,omitempty"`
	SummaryGeneratedAt *time.Time `json:"summary_generated_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (SharedContent) TableName() string {
	return "shared_contents"
}
