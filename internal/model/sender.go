package model

import (
	"time"
)

// Sender 用户订阅的 newsletter 发件人，按 (user_id, email) 唯一。
type Sender struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_user_sender_email" json:"user_id"`
	Email     string    `gorm:"size:200;not null;uniqueIndex:idx_user_sender_email" json:"email"`
	Name      string    `gorm:"size:200" json:"name"`
	FolderID  *int64    `gorm:"index" json:"folder_id,omitempty"`
	IsPrivate bool      `gorm:"default:false" json:"is_private"` // 该发件人的邮件是否私密存储
	ItemCount int       `gorm:"default:0" json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Sender) TableName() string {
	return "senders"
}

// Folder 用户自定义的收件夹
type Folder struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_user_folder_name" json:"user_id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_user_folder_name" json:"name"`
	Position  int       `gorm:"default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Folder) TableName() string {
	return "folders"
}
