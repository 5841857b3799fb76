package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkfold/newsletter_go_server/internal/model"
)

type SharedContentRepository struct {
	db *gorm.DB
}

func NewSharedContentRepository(db *gorm.DB) *SharedContentRepository {
	return &SharedContentRepository{db: db}
}

func (r *SharedContentRepository) GetByID(id int64) (*model.SharedContent, error) {
	var content model.SharedContent
	err := r.db.Where("id = ?", id).First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func (r *SharedContentRepository) GetByHash(contentHash string) (*model.SharedContent, error) {
	var content model.SharedContent
	err := r.db.Where("content_hash = ?", contentHash).First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// CreateIfAbsent 条件插入：content_hash 上的唯一约束裁决并发首投。
// 返回 true 表示本次插入成功（首投），false 表示哈希已存在（由调用方按命中处理）。
// 不做先查后插，冲突直接由约束吸收，等价于对哈希键的 CAS。
func (r *SharedContentRepository) CreateIfAbsent(content *model.SharedContent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		DoNothing: true,
	}).Create(content)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementReaderCount 原子递增引用计数
func (r *SharedContentRepository) IncrementReaderCount(tx *gorm.DB, id int64) error {
	return tx.Model(&model.SharedContent{}).Where("id = ?", id).
		Update("reader_count", gorm.Expr("reader_count + 1")).Error
}

// UpdateSummary 写入共享摘要
func (r *SharedContentRepository) UpdateSummary(id int64, summary string, generatedAt time.Time) error {
	return r.db.Model(&model.SharedContent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"summary":              summary,
		"summary_generated_at": generatedAt,
	}).Error
}
