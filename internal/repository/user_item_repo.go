package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/internal/model"
)

type UserItemRepository struct {
	db *gorm.DB
}

func NewUserItemRepository(db *gorm.DB) *UserItemRepository {
	return &UserItemRepository{db: db}
}

// Create 在给定事务内创建条目（与计数器更新同事务提交）
func (r *UserItemRepository) Create(tx *gorm.DB, item *model.UserItem) error {
	return tx.Create(item).Error
}

func (r *UserItemRepository) GetByID(id int64) (*model.UserItem, error) {
	var item model.UserItem
	err := r.db.Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *UserItemRepository) GetByIDWithShared(id int64) (*model.UserItem, error) {
	var item model.UserItem
	err := r.db.Preload("SharedContent").Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByUserID 获取用户收件箱列表
func (r *UserItemRepository) ListByUserID(userID int64, page, pageSize int, folderID *int64, search string) ([]*model.UserItem, int64, error) {
	var items []*model.UserItem
	var total int64

	query := r.db.Model(&model.UserItem{}).Where("user_id = ?", userID)

	if folderID != nil {
		query = query.Where("folder_id = ?", *folderID)
	}
	if search != "" {
		query = query.Where("subject LIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 带出共享内容，列表才能判断共享池里的摘要
	offset := (page - 1) * pageSize
	if err := query.Preload("SharedContent").
		Order("received_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// CountBySharedContentID 统计引用某共享内容的条目数（校验 reader_count 用）
func (r *UserItemRepository) CountBySharedContentID(sharedContentID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.UserItem{}).
		Where("shared_content_id = ?", sharedContentID).Count(&count).Error
	return count, err
}

// UpdateSummary 写入个人摘要（私密条目或个人覆盖）
func (r *UserItemRepository) UpdateSummary(id int64, summary string, generatedAt time.Time) error {
	return r.db.Model(&model.UserItem{}).Where("id = ?", id).Updates(map[string]interface{}{
		"summary":              summary,
		"summary_generated_at": generatedAt,
	}).Error
}
