package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkfold/newsletter_go_server/internal/model"
)

type SenderRepository struct {
	db *gorm.DB
}

func NewSenderRepository(db *gorm.DB) *SenderRepository {
	return &SenderRepository{db: db}
}

// FindOrCreate 按 (user_id, email) 查找发件人，不存在则创建。
// 并发首封邮件靠唯一约束收敛到一行。
func (r *SenderRepository) FindOrCreate(userID int64, email, name string) (*model.Sender, error) {
	var sender model.Sender
	err := r.db.Where("user_id = ? AND email = ?", userID, email).First(&sender).Error
	if err == nil {
		return &sender, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sender = model.Sender{UserID: userID, Email: email, Name: name}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&sender).Error; err != nil {
		return nil, err
	}
	if sender.ID != 0 {
		return &sender, nil
	}

	// 冲突说明并发方已建，回读
	err = r.db.Where("user_id = ? AND email = ?", userID, email).First(&sender).Error
	if err != nil {
		return nil, err
	}
	return &sender, nil
}

func (r *SenderRepository) GetByID(id int64) (*model.Sender, error) {
	var sender model.Sender
	err := r.db.Where("id = ?", id).First(&sender).Error
	if err != nil {
		return nil, err
	}
	return &sender, nil
}

func (r *SenderRepository) ListByUserID(userID int64) ([]*model.Sender, error) {
	var senders []*model.Sender
	err := r.db.Where("user_id = ?", userID).Order("email ASC").Find(&senders).Error
	return senders, err
}

func (r *SenderRepository) Update(sender *model.Sender) error {
	return r.db.Save(sender).Error
}

// IncrementItemCount 发件人收件计数加一
func (r *SenderRepository) IncrementItemCount(tx *gorm.DB, id int64) error {
	return tx.Model(&model.Sender{}).Where("id = ?", id).
		Update("item_count", gorm.Expr("item_count + 1")).Error
}

// FolderRepository 收件夹
type FolderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(folder *model.Folder) error {
	return r.db.Create(folder).Error
}

func (r *FolderRepository) GetByID(id int64) (*model.Folder, error) {
	var folder model.Folder
	err := r.db.Where("id = ?", id).First(&folder).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *FolderRepository) ListByUserID(userID int64) ([]*model.Folder, error) {
	var folders []*model.Folder
	err := r.db.Where("user_id = ?", userID).Order("position ASC, name ASC").Find(&folders).Error
	return folders, err
}

func (r *FolderRepository) Delete(id int64) error {
	return r.db.Delete(&model.Folder{}, id).Error
}
