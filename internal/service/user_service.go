package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/pkg/oss"
	"github.com/inkfold/newsletter_go_server/internal/repository"
)

type UserService struct {
	userRepo    *repository.UserRepository
	entitlement *EntitlementService
	summarySvc  *SummaryService
	ossClient   *oss.Client
	cfg         *config.Config
}

func NewUserService(userRepo *repository.UserRepository, entitlement *EntitlementService, summarySvc *SummaryService, ossClient *oss.Client, cfg *config.Config) *UserService {
	return &UserService{
		userRepo:    userRepo,
		entitlement: entitlement,
		summarySvc:  summarySvc,
		ossClient:   ossClient,
		cfg:         cfg,
	}
}

// GetProfile 获取用户详情，带存储用量和当日 AI 额度
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	info := buildUserInfo(user)
	info.CreatedAt = user.CreatedAt.Format(time.RFC3339)

	usage, err := s.entitlement.GetUsageInfo(userID)
	if err != nil {
		return nil, err
	}

	if s.summarySvc != nil {
		aiUsage, err := s.summarySvc.GetUsage(ctx, userID)
		if err == nil {
			usage.AI = aiUsage
		}
	}
	info.Usage = usage

	return info, nil
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// 检查用户名是否已被占用
	if req.Username != nil && *req.Username != user.Username {
		exists, err := s.userRepo.ExistsByUsername(*req.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrUsernameExists
		}
		user.Username = *req.Username
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	return s.GetProfile(ctx, userID)
}

// GetUsage 存储用量与套餐额度
func (s *UserService) GetUsage(ctx context.Context, userID int64) (*dto.UsageInfo, error) {
	usage, err := s.entitlement.GetUsageInfo(userID)
	if err != nil {
		return nil, err
	}

	if s.summarySvc != nil {
		aiUsage, err := s.summarySvc.GetUsage(ctx, userID)
		if err == nil {
			usage.AI = aiUsage
		}
	}

	return usage, nil
}

// UploadAvatar 上传用户头像到 OSS
func (s *UserService) UploadAvatar(userID int64, file io.Reader, filename string) (string, error) {
	if s.ossClient == nil {
		return "", errors.New("OSS 客户端未配置")
	}

	// 读取文件内容
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	// 获取文件扩展名
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}

	// 上传到 OSS
	avatarURL, err := s.ossClient.UploadAvatar(userID, data, ext)
	if err != nil {
		return "", err
	}

	// 更新用户头像 URL
	if err := s.userRepo.UpdateFields(userID, map[string]interface{}{
		"avatar_url": avatarURL,
	}); err != nil {
		return "", err
	}

	return avatarURL, nil
}
