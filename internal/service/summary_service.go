package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/pkg/llm"
	"github.com/inkfold/newsletter_go_server/internal/pkg/lock"
	"github.com/inkfold/newsletter_go_server/internal/pkg/pubsub"
	"github.com/inkfold/newsletter_go_server/internal/pkg/ratelimit"
	"github.com/inkfold/newsletter_go_server/internal/repository"
)

var (
	ErrAILimitReached  = errors.New("今日 AI 摘要次数已用完")
	ErrAICooldown      = errors.New("操作过于频繁，请稍后重试")
	ErrAIBusy          = errors.New("该邮件正在生成摘要中")
	ErrAITimeout       = errors.New("AI 服务响应超时")
	ErrAINotConfigured = errors.New("AI 服务未配置")
)

const summarySystemPrompt = "你是一个 newsletter 摘要助手。用三到五句话概括这封邮件的核心内容，保留关键数字和链接主题，使用邮件原文的语言。"

// AIProvider 补全服务抽象，llm.Client 实现
type AIProvider interface {
	Configured() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SummaryService AI 摘要生成。
// 准入顺序：pro 套餐 → 当日次数 → 冷却窗口 → 单飞锁。
// 前三项是乐观预检，锁才是并发的最终裁决者。
type SummaryService struct {
	itemRepo    *repository.UserItemRepository
	sharedRepo  *repository.SharedContentRepository
	entitlement *EntitlementService
	provider    AIProvider
	blobStore   BlobStore
	locker      *lock.Locker
	daily       *ratelimit.DailyCounter
	publisher   *pubsub.Publisher
	cfg         *config.AIConfig
}

func NewSummaryService(
	itemRepo *repository.UserItemRepository,
	sharedRepo *repository.SharedContentRepository,
	entitlement *EntitlementService,
	provider AIProvider,
	blobStore BlobStore,
	locker *lock.Locker,
	daily *ratelimit.DailyCounter,
	publisher *pubsub.Publisher,
	cfg *config.AIConfig,
) *SummaryService {
	return &SummaryService{
		itemRepo:    itemRepo,
		sharedRepo:  sharedRepo,
		entitlement: entitlement,
		provider:    provider,
		blobStore:   blobStore,
		locker:      locker,
		daily:       daily,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// Generate 为一封邮件生成摘要。
// 已有摘要且未指定 force 时直接返回现有摘要，不消耗次数。
// 计数只在生成成功后增加，失败的调用不占额度。
func (s *SummaryService) Generate(ctx context.Context, userID, itemID int64, req *dto.GenerateSummaryRequest) (*dto.SummaryResult, error) {
	if !s.provider.Configured() {
		return nil, ErrAINotConfigured
	}

	user, err := s.entitlement.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.entitlement.RequirePro(user, now); err != nil {
		return nil, err
	}

	item, err := s.itemRepo.GetByIDWithShared(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	if item.UserID != userID {
		return nil, ErrItemPermission
	}

	// 已有摘要且未指定 force：直接复用，不消耗次数也不走准入
	existing, generatedAt := effectiveSummary(item)
	if existing != "" && !req.Force {
		return &dto.SummaryResult{
			ItemID:      itemID,
			Summary:     existing,
			GeneratedAt: generatedAt.Format(time.RFC3339),
			Shared:      !item.IsPrivate() && item.Summary == nil,
		}, nil
	}

	// 当日次数先于冷却窗口判定
	used, err := s.daily.Get(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if s.cfg.DailyLimit > 0 && used >= s.cfg.DailyLimit {
		return nil, ErrAILimitReached
	}

	// force 重生成受冷却窗口约束
	if existing != "" {
		cooldown := time.Duration(s.cfg.CooldownSeconds) * time.Second
		if now.Sub(generatedAt) < cooldown {
			return nil, ErrAICooldown
		}
	}

	// 单飞锁按条目粒度，持锁失败立即返回不排队
	lockTTL := time.Duration(s.cfg.LockTTLSeconds) * time.Second
	handle, acquired, err := s.locker.Acquire(ctx, fmt.Sprintf("summary:%d", itemID), lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrAIBusy
	}
	defer func() {
		// 用独立 ctx 释放，调用方取消不能把锁留到 TTL 过期
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := handle.Release(releaseCtx); err != nil {
			log.Printf("failed to release summary lock for item %d: %v", itemID, err)
		}
	}()

	blobKey := ""
	if item.PrivateBlobKey != nil {
		blobKey = *item.PrivateBlobKey
	} else if item.SharedContent != nil {
		blobKey = item.SharedContent.BlobKey
	}
	if blobKey == "" {
		return nil, ErrItemNotFound
	}

	content, err := s.blobStore.Get(blobKey)
	if err != nil {
		return nil, err
	}

	summary, err := s.provider.Complete(ctx, summarySystemPrompt, string(content))
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return nil, ErrAITimeout
		}
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, ErrAINotConfigured
		}
		return nil, err
	}

	generatedNow := time.Now()
	shared := false

	// 公开内容的摘要写进共享池，所有引用者受益；私密内容和 force 重生成写个人条目
	if !item.IsPrivate() && item.SharedContentID != nil && !req.Force {
		if err := s.sharedRepo.UpdateSummary(*item.SharedContentID, summary, generatedNow); err != nil {
			return nil, err
		}
		shared = true
	} else {
		if err := s.itemRepo.UpdateSummary(itemID, summary, generatedNow); err != nil {
			return nil, err
		}
	}

	if err := s.daily.Incr(ctx, userID, generatedNow); err != nil {
		// 计数失败不回滚摘要，只记日志
		log.Printf("failed to incr ai daily counter for user %d: %v", userID, err)
	}

	s.publishSummaryReady(ctx, userID, itemID, summary)

	return &dto.SummaryResult{
		ItemID:      itemID,
		Summary:     summary,
		GeneratedAt: generatedNow.Format(time.RFC3339),
		Shared:      shared,
	}, nil
}

// GetUsage 当日 AI 用量
func (s *SummaryService) GetUsage(ctx context.Context, userID int64) (*dto.AIUsageInfo, error) {
	used, err := s.daily.Get(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}

	remaining := s.cfg.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}

	return &dto.AIUsageInfo{
		DailyLimit: s.cfg.DailyLimit,
		DailyUsed:  used,
		Remaining:  remaining,
	}, nil
}

func (s *SummaryService) publishSummaryReady(ctx context.Context, userID, itemID int64, summary string) {
	if s.publisher == nil {
		return
	}
	event := &pubsub.InboxEvent{
		Type:       pubsub.EventSummaryReady,
		UserID:     userID,
		UserItemID: itemID,
		Summary:    summary,
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		log.Printf("failed to publish summary event: %v", err)
	}
}
