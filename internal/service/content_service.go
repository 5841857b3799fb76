package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/model"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/pkg/pubsub"
	"github.com/inkfold/newsletter_go_server/internal/repository"
)

var (
	ErrItemNotFound   = errors.New("邮件不存在")
	ErrItemPermission = errors.New("无权访问该邮件")
	ErrEmptyContent   = errors.New("邮件内容为空")
)

// SkipReasonPlanLimit 入库跳过原因：触达套餐硬上限
const SkipReasonPlanLimit = "plan_limit"

// BlobStore 对象存储抽象，OSS 客户端实现
type BlobStore interface {
	PutShared(contentHash string, data []byte) (string, error)
	PutPrivate(userID int64, data []byte) (string, error)
	Get(objectKey string) ([]byte, error)
	GetSignedURL(objectKey string, expireSeconds ...int64) (string, error)
	Delete(objectKey string) error
}

// ContentService 入库写路径：私密内容按用户隔离，公开内容按哈希去重进共享池。
type ContentService struct {
	db          *gorm.DB
	itemRepo    *repository.UserItemRepository
	sharedRepo  *repository.SharedContentRepository
	senderRepo  *repository.SenderRepository
	userRepo    *repository.UserRepository
	entitlement *EntitlementService
	blobStore   BlobStore
	publisher   *pubsub.Publisher
	cfg         *config.Config
}

func NewContentService(
	db *gorm.DB,
	itemRepo *repository.UserItemRepository,
	sharedRepo *repository.SharedContentRepository,
	senderRepo *repository.SenderRepository,
	userRepo *repository.UserRepository,
	entitlement *EntitlementService,
	blobStore BlobStore,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *ContentService {
	return &ContentService{
		db:          db,
		itemRepo:    itemRepo,
		sharedRepo:  sharedRepo,
		senderRepo:  senderRepo,
		userRepo:    userRepo,
		entitlement: entitlement,
		blobStore:   blobStore,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// Store 入库一封 newsletter。
// 额度判定与条目创建在同一事务内提交；拒绝时不产生任何持久副作用。
func (s *ContentService) Store(ctx context.Context, req *dto.StoreNewsletterRequest) (*dto.StoreNewsletterResult, error) {
	if len(req.HTML) == 0 {
		return nil, ErrEmptyContent
	}

	user, err := s.userRepo.GetByID(req.UserID)
	if err != nil {
		return nil, err
	}
	plan := user.EffectivePlan(time.Now())

	// 只读预判：已经超硬上限就不写 OSS 了。最终裁决在事务里。
	ok, err := s.entitlement.Precheck(req.UserID, plan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &dto.StoreNewsletterResult{Skipped: true, Reason: SkipReasonPlanLimit}, nil
	}

	sender, err := s.senderRepo.FindOrCreate(req.UserID, req.SenderEmail, req.SenderName)
	if err != nil {
		return nil, err
	}

	receivedAt := parseReceivedAt(req.ReceivedAt)
	folderID := req.FolderID
	if folderID == nil {
		folderID = sender.FolderID
	}

	item := &model.UserItem{
		UserID:      req.UserID,
		SenderID:    sender.ID,
		FolderID:    folderID,
		Subject:     req.Subject,
		SenderEmail: req.SenderEmail,
		SenderName:  req.SenderName,
		ReceivedAt:  receivedAt,
		Source:      req.Source,
	}

	isPrivate := req.IsPrivate || sender.IsPrivate
	deduped := false
	var privateBlobKey string
	var sharedID int64

	if isPrivate {
		key, err := s.blobStore.PutPrivate(req.UserID, req.HTML)
		if err != nil {
			return nil, err
		}
		privateBlobKey = key
		item.PrivateBlobKey = &privateBlobKey
	} else {
		shared, wasHit, err := s.resolveShared(req, receivedAt)
		if err != nil {
			return nil, err
		}
		deduped = wasHit
		sharedID = shared.ID
		item.SharedContentID = &sharedID
	}

	result := &dto.StoreNewsletterResult{}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		admission, err := s.entitlement.AdmitStore(tx, req.UserID, plan)
		if err != nil {
			return err
		}
		if !admission.Admitted {
			result.Skipped = true
			result.Reason = SkipReasonPlanLimit
			return errStoreRejected // 回滚，计数器不动
		}

		item.IsLockedByPlan = admission.Locked

		if err := s.itemRepo.Create(tx, item); err != nil {
			return err
		}
		if item.SharedContentID != nil {
			if err := s.sharedRepo.IncrementReaderCount(tx, *item.SharedContentID); err != nil {
				return err
			}
		}
		return s.senderRepo.IncrementItemCount(tx, sender.ID)
	})

	if err != nil {
		if errors.Is(err, errStoreRejected) {
			// 并发下预判通过但裁决拒绝：回收已写的私密对象
			if privateBlobKey != "" {
				if derr := s.blobStore.Delete(privateBlobKey); derr != nil {
					log.Printf("failed to delete rejected private blob %s: %v", privateBlobKey, derr)
				}
			}
			s.publishEvent(ctx, &pubsub.InboxEvent{
				Type:    pubsub.EventItemSkipped,
				UserID:  req.UserID,
				Subject: req.Subject,
				Reason:  SkipReasonPlanLimit,
			})
			return result, nil
		}
		return nil, err
	}

	result.UserItemID = item.ID
	result.Locked = item.IsLockedByPlan
	result.Deduped = deduped

	s.publishEvent(ctx, &pubsub.InboxEvent{
		Type:       pubsub.EventItemStored,
		UserID:     req.UserID,
		UserItemID: item.ID,
		Subject:    req.Subject,
		Locked:     item.IsLockedByPlan,
	})

	return result, nil
}

// 事务内部信号，用于区分"额度拒绝回滚"和真实错误
var errStoreRejected = errors.New("store rejected by plan limit")

// resolveShared 查找或创建共享内容。
// 条件插入由哈希唯一约束裁决：插入失败方按命中回读，两个并发首投只会留下一行。
func (s *ContentService) resolveShared(req *dto.StoreNewsletterRequest, receivedAt time.Time) (*model.SharedContent, bool, error) {
	contentHash := hashContent(req.HTML)

	if existing, err := s.sharedRepo.GetByHash(contentHash); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	blobKey, err := s.blobStore.PutShared(contentHash, req.HTML)
	if err != nil {
		return nil, false, err
	}

	content := &model.SharedContent{
		ContentHash:     contentHash,
		BlobKey:         blobKey,
		Subject:         req.Subject,
		SenderEmail:     req.SenderEmail,
		SenderName:      req.SenderName,
		FirstReceivedAt: receivedAt,
	}

	created, err := s.sharedRepo.CreateIfAbsent(content)
	if err != nil {
		return nil, false, err
	}
	if created {
		return content, false, nil
	}

	// 输给并发首投，按命中处理。对象存储按哈希寻址，重复写无害。
	existing, err := s.sharedRepo.GetByHash(contentHash)
	if err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// GetDetail 获取条目详情，带签名 URL 与共享摘要
func (s *ContentService) GetDetail(userID, itemID int64) (*dto.ItemDetail, error) {
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

	detail := &dto.ItemDetail{
		ID:             item.ID,
		Subject:        item.Subject,
		SenderEmail:    item.SenderEmail,
		SenderName:     item.SenderName,
		FolderID:       item.FolderID,
		ReceivedAt:     item.ReceivedAt.Format(time.RFC3339),
		IsLockedByPlan: item.IsLockedByPlan,
		IsPrivate:      item.IsPrivate(),
	}

	blobKey := ""
	if item.PrivateBlobKey != nil {
		blobKey = *item.PrivateBlobKey
	} else if item.SharedContent != nil {
		blobKey = item.SharedContent.BlobKey
		detail.ReaderCount = item.SharedContent.ReaderCount
	}

	if blobKey != "" {
		url, err := s.blobStore.GetSignedURL(blobKey)
		if err != nil {
			log.Printf("failed to sign url for item %d: %v", item.ID, err)
		} else {
			detail.ContentURL = url
		}
	}

	// 个人摘要优先于共享摘要
	summary, generatedAt := effectiveSummary(item)
	if summary != "" {
		detail.Summary = summary
		detail.SummaryGeneratedAt = generatedAt.Format(time.RFC3339)
	}

	return detail, nil
}

// List 获取收件箱列表
func (s *ContentService) List(userID int64, page, pageSize int, folderID *int64, search string) ([]*dto.ItemListItem, int64, error) {
	items, total, err := s.itemRepo.ListByUserID(userID, page, pageSize, folderID, search)
	if err != nil {
		return nil, 0, err
	}

	listItems := make([]*dto.ItemListItem, len(items))
	for i, item := range items {
		summary, _ := effectiveSummary(item)
		listItems[i] = &dto.ItemListItem{
			ID:             item.ID,
			Subject:        item.Subject,
			SenderEmail:    item.SenderEmail,
			SenderName:     item.SenderName,
			FolderID:       item.FolderID,
			ReceivedAt:     item.ReceivedAt.Format(time.RFC3339),
			IsLockedByPlan: item.IsLockedByPlan,
			IsPrivate:      item.IsPrivate(),
			HasSummary:     summary != "",
		}
	}

	return listItems, total, nil
}

// publishEvent 尽力而为推送，失败只记日志不影响入库结果
func (s *ContentService) publishEvent(ctx context.Context, event *pubsub.InboxEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		log.Printf("failed to publish inbox event: %v", err)
	}
}

// effectiveSummary 条目生效的摘要：个人覆盖 > 共享池
func effectiveSummary(item *model.UserItem) (string, time.Time) {
	if item.Summary != nil && item.SummaryGeneratedAt != nil {
		return *item.Summary, *item.SummaryGeneratedAt
	}
	if item.SharedContent != nil && item.SharedContent.Summary != nil && item.SharedContent.SummaryGeneratedAt != nil {
		return *item.SharedContent.Summary, *item.SharedContent.SummaryGeneratedAt
	}
	return "", time.Time{}
}

func hashContent(html []byte) string {
	sum := sha256.Sum256(html)
	return hex.EncodeToString(sum[:])
}

func parseReceivedAt(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Now()
	}
	return t
}
