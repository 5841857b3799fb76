package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkfold/newsletter_go_server/internal/model"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// InsertIfNew 幂等台账写入，在调用方事务内执行。
// event_id 唯一约束保证只有一个调用者看到"首次"。
// 返回 true 表示首次见到该事件，false 表示重复投递（正常路径，不是错误）。
func (r *WebhookRepository) InsertIfNew(tx *gorm.DB, eventID, eventType string) (bool, error) {
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&model.WebhookEvent{EventID: eventID, EventType: eventType})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Exists 事件是否已处理过
func (r *WebhookRepository) Exists(eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.WebhookEvent{}).Where("event_id = ?", eventID).Count(&count).Error
	return count > 0, err
}

// CountOlderThan 统计超过保留期的事件数
func (r *WebhookRepository) CountOlderThan(cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.WebhookEvent{}).Where("created_at < ?", cutoff).Count(&count).Error
	return count, err
}

// DeleteOlderThan 按保留期清理台账，返回删除行数
func (r *WebhookRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&model.WebhookEvent{})
	return result.RowsAffected, result.Error
}
