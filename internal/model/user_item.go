package model

import (
	"time"
)

// UserItem 用户收件箱中的一封邮件。
// SharedContentID 与 PrivateBlobKey 二选一：公开内容引用共享池，
// 私密内容持有独立的 OSS key。IsLockedByPlan 在创建时一次性定下，之后不变。
type UserItem struct {
	ID                 int64      `gorm:"primaryKey" json:"id"`
	UserID             int64      `gorm:"not null;index:idx_user_received" json:"user_id"`
	SenderID           int64      `gorm:"not null;index" json:"sender_id"`
	FolderID           *int64     `gorm:"index" json:"folder_id,omitempty"`
	SharedContentID    *int64     `gorm:"index" json:"shared_content_id,omitempty"`
	PrivateBlobKey     *string    `gorm:"size:500" json:"-"`
	Subject            string     `gorm:"size:500" json:"subject"`
	SenderEmail        string     `gorm:"size:200" json:"sender_email"`
	SenderName         string     `gorm:"size:200" json:"sender_name"`
	ReceivedAt         time.Time  `gorm:"index:idx_user_received" json:"received_at"`
	Source             string     `gorm:"size:20;default:inbound" json:"source"` // inbound, import
	IsLockedByPlan     bool       `gorm:"not null;default:false" json:"is_locked_by_plan"`
	Summary            *string    `gorm:"type:text" json:"summary,omitempty"`
	SummaryGeneratedAt *time.Time `json:"summary_generated_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// 关联
	SharedContent *SharedContent `gorm:"foreignKey:SharedContentID" json:"shared_content,omitempty"`
}

func (UserItem) TableName() string {
	return "user_items"
}

// IsPrivate 是否为私密存储
func (i *UserItem) IsPrivate() bool {
	return i.PrivateBlobKey != nil
}
