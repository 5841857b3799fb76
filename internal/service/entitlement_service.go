package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/model"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/repository"
)

var (
	ErrProRequired = errors.New("该功能需要 Pro 套餐")
)

// StoreAdmission 一次入库的准入结果。
// Admitted 为 false 表示触达硬上限，整次入库跳过；
// Locked 表示超出解锁额度、按锁定条目入库。
type StoreAdmission struct {
	Admitted bool
	Locked   bool
}

// EntitlementService 套餐额度裁决。
// 存储额度的三个分支在调用方事务内、计数器行锁下裁决并记账，
// 保证同一用户并发入库不会越过上限。
type EntitlementService struct {
	usageRepo *repository.UsageRepository
	userRepo  *repository.UserRepository
	cfg       *config.Config
}

func NewEntitlementService(
	usageRepo *repository.UsageRepository,
	userRepo *repository.UserRepository,
	cfg *config.Config,
) *EntitlementService {
	return &EntitlementService{
		usageRepo: usageRepo,
		userRepo:  userRepo,
		cfg:       cfg,
	}
}

// AdmitStore 在 tx 内裁决并记账一次入库。
// 判定顺序：解锁额度内 -> 解锁；硬上限内 -> 锁定；否则拒绝（计数器不动）。
func (s *EntitlementService) AdmitStore(tx *gorm.DB, userID int64, plan string) (*StoreAdmission, error) {
	level := s.levelFor(plan)

	counters, err := s.usageRepo.GetForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case level.UnlockedCap <= 0 || counters.UnlockedStored < level.UnlockedCap:
		if err := s.usageRepo.IncrementUnlocked(tx, userID); err != nil {
			return nil, err
		}
		return &StoreAdmission{Admitted: true, Locked: false}, nil

	case level.HardCap <= 0 || counters.TotalStored < level.HardCap:
		if err := s.usageRepo.IncrementLocked(tx, userID); err != nil {
			return nil, err
		}
		return &StoreAdmission{Admitted: true, Locked: true}, nil

	default:
		return &StoreAdmission{Admitted: false}, nil
	}
}

// Precheck 只读预判，不动计数器。用于在写 OSS 之前挡掉明显超限的请求；
// 最终裁决仍以 AdmitStore 为准。
func (s *EntitlementService) Precheck(userID int64, plan string) (bool, error) {
	level := s.levelFor(plan)
	if level.HardCap <= 0 {
		return true, nil
	}

	counters, err := s.usageRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, err
	}

	return counters.TotalStored < level.HardCap, nil
}

// RequirePro AI 摘要等 Pro 功能的前置检查。
// 套餐取 EffectivePlan：pro 到期后立刻按 free 拒绝，不等回调补刀。
func (s *EntitlementService) RequirePro(user *model.User, now time.Time) error {
	if user.EffectivePlan(now) != model.PlanPro {
		return ErrProRequired
	}
	return nil
}

// GetUsageInfo 用户的存储用量与额度
func (s *EntitlementService) GetUsageInfo(userID int64) (*dto.UsageInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	plan := user.EffectivePlan(time.Now())
	level := s.levelFor(plan)

	info := &dto.UsageInfo{
		Plan:        plan,
		UnlockedCap: level.UnlockedCap,
		HardCap:     level.HardCap,
	}

	counters, err := s.usageRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return info, nil
		}
		return nil, err
	}

	info.TotalStored = counters.TotalStored
	info.UnlockedStored = counters.UnlockedStored
	info.LockedStored = counters.LockedStored

	return info, nil
}

func (s *EntitlementService) levelFor(plan string) config.PlanLevel {
	level, ok := s.cfg.Plans.Levels[plan]
	if !ok {
		level = s.cfg.Plans.Levels[model.PlanFree]
	}
	return level
}
