package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkfold/newsletter_go_server/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) GetByUserID(userID int64) (*model.UsageCounters, error) {
	var counters model.UsageCounters
	err := r.db.Where("user_id = ?", userID).First(&counters).Error
	if err != nil {
		return nil, err
	}
	return &counters, nil
}

// EnsureExists 确保计数器行存在（注册时调用，入库时兜底）
func (r *UsageRepository) EnsureExists(userID int64) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UsageCounters{UserID: userID}).Error
}

// GetForUpdate 在事务内加行锁读取计数器。
// 并发入库对同一用户必须串行化在这行上，三个分支才互斥。
func (r *UsageRepository) GetForUpdate(tx *gorm.DB, userID int64) (*model.UsageCounters, error) {
	var counters model.UsageCounters
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&counters).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 行不存在则先建再锁
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.UsageCounters{UserID: userID}).Error; err != nil {
			return nil, err
		}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&counters).Error
	}
	if err != nil {
		return nil, err
	}
	return &counters, nil
}

// IncrementUnlocked 记一条解锁存储
func (r *UsageRepository) IncrementUnlocked(tx *gorm.DB, userID int64) error {
	return tx.Model(&model.UsageCounters{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_stored":    gorm.Expr("total_stored + 1"),
			"unlocked_stored": gorm.Expr("unlocked_stored + 1"),
		}).Error
}

// IncrementLocked 记一条锁定存储
func (r *UsageRepository) IncrementLocked(tx *gorm.DB, userID int64) error {
	return tx.Model(&model.UsageCounters{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_stored":  gorm.Expr("total_stored + 1"),
			"locked_stored": gorm.Expr("locked_stored + 1"),
		}).Error
}
