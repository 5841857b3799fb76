package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/internal/model"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/repository"
)

var (
	ErrSenderNotFound = errors.New("发件人不存在")
	ErrFolderNotFound = errors.New("文件夹不存在")
)

// SenderService 发件人与收件夹管理。
// 发件人的 IsPrivate 开关决定后续来信走私密存储还是共享池。
type SenderService struct {
	senderRepo *repository.SenderRepository
	folderRepo *repository.FolderRepository
}

func NewSenderService(senderRepo *repository.SenderRepository, folderRepo *repository.FolderRepository) *SenderService {
	return &SenderService{
		senderRepo: senderRepo,
		folderRepo: folderRepo,
	}
}

// ListSenders 当前用户的发件人列表
func (s *SenderService) ListSenders(userID int64) ([]*model.Sender, error) {
	return s.senderRepo.ListByUserID(userID)
}

// UpdateSender 修改发件人设置（私密开关、所属文件夹）
func (s *SenderService) UpdateSender(userID, senderID int64, req *dto.UpdateSenderRequest) (*model.Sender, error) {
	sender, err := s.senderRepo.GetByID(senderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}
	if sender.UserID != userID {
		return nil, ErrSenderNotFound
	}

	if req.IsPrivate != nil {
		sender.IsPrivate = *req.IsPrivate
	}
	if req.FolderID != nil {
		if *req.FolderID == 0 {
			sender.FolderID = nil
		} else {
			folder, err := s.folderRepo.GetByID(*req.FolderID)
			if err != nil || folder.UserID != userID {
				return nil, ErrFolderNotFound
			}
			sender.FolderID = req.FolderID
		}
	}
	if req.Name != nil {
		sender.Name = *req.Name
	}

	if err := s.senderRepo.Update(sender); err != nil {
		return nil, err
	}

	return sender, nil
}

// ListFolders 当前用户的文件夹列表
func (s *SenderService) ListFolders(userID int64) ([]*model.Folder, error) {
	return s.folderRepo.ListByUserID(userID)
}

// CreateFolder 新建文件夹
func (s *SenderService) CreateFolder(userID int64, name string, position int) (*model.Folder, error) {
	folder := &model.Folder{
		UserID:   userID,
		Name:     name,
		Position: position,
	}
	if err := s.folderRepo.Create(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder 删除文件夹。文件夹下的条目保留，folder_id 引用失效后按未分类展示。
func (s *SenderService) DeleteFolder(userID, folderID int64) error {
	folder, err := s.folderRepo.GetByID(folderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFolderNotFound
		}
		return err
	}
	if folder.UserID != userID {
		return ErrFolderNotFound
	}

	return s.folderRepo.Delete(folderID)
}
