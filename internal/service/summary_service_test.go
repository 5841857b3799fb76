package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/model"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/pkg/llm"
	"github.com/inkfold/newsletter_go_server/internal/pkg/lock"
	"github.com/inkfold/newsletter_go_server/internal/pkg/ratelimit"
	"github.com/inkfold/newsletter_go_server/internal/repository"
	"github.com/inkfold/newsletter_go_server/internal/testutil"
)

type summaryTestEnv struct {
	db        *gorm.DB
	service   *SummaryService
	provider  *fakeAIProvider
	blobStore *fakeBlobStore
	locker    *lock.Locker
	daily     *ratelimit.DailyCounter
}

func setupSummaryService(t *testing.T) *summaryTestEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	_, rdb := testutil.SetupTestRedis(t)

	provider := &fakeAIProvider{configured: true, result: "本期要点：Go 1.25 发布。"}
	blobStore := newFakeBlobStore()
	locker := lock.NewLocker(rdb, "ai:lock")
	daily := ratelimit.NewDailyCounter(rdb, "ai:daily")

	cfg := &config.AIConfig{
		DailyLimit:      50,
		CooldownSeconds: 60,
		LockTTLSeconds:  30,
	}

	service := NewSummaryService(
		repository.NewUserItemRepository(db),
		repository.NewSharedContentRepository(db),
		newEntitlementService(db),
		provider,
		blobStore,
		locker,
		daily,
		nil,
		cfg,
	)

	return &summaryTestEnv{
		db:        db,
		service:   service,
		provider:  provider,
		blobStore: blobStore,
		locker:    locker,
		daily:     daily,
	}
}

// proUserWithItem 建一个 pro 用户和一封已入库的公开邮件，内容写进假 OSS
func proUserWithItem(t *testing.T, env *summaryTestEnv) (*model.User, *model.UserItem) {
	t.Helper()

	user := testutil.TestUser(t, env.db, testutil.WithProUntil(time.Now().Add(24*time.Hour)))
	sender := testutil.TestSender(t, env.db, user.ID)

	html := "<html>newsletter body</html>"
	shared := testutil.TestSharedContent(t, env.db, html)
	key, err := env.blobStore.PutShared(shared.ContentHash, []byte(html))
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&model.SharedContent{}).Where("id = ?", shared.ID).Update("blob_key", key).Error)

	item := testutil.TestUserItem(t, env.db, user.ID, sender.ID, &shared.ID)
	return user, item
}

func TestSummaryService_Generate_Success(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	result, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, "本期要点：Go 1.25 发布。", result.Summary)
	assert.True(t, result.Shared)
	assert.Equal(t, 1, env.provider.calls)

	// 公开内容的摘要写进共享池
	var shared model.SharedContent
	require.NoError(t, env.db.First(&shared, *item.SharedContentID).Error)
	require.NotNil(t, shared.Summary)
	assert.Equal(t, "本期要点：Go 1.25 发布。", *shared.Summary)

	// 成功后计数加一
	used, err := env.daily.Get(context.Background(), user.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestSummaryService_Generate_ProRequired(t *testing.T) {
	env := setupSummaryService(t)

	user := testutil.TestUser(t, env.db)
	sender := testutil.TestSender(t, env.db, user.ID)
	item := testutil.TestUserItem(t, env.db, user.ID, sender.ID, nil)

	_, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	assert.Equal(t, ErrProRequired, err)
	assert.Equal(t, 0, env.provider.calls)

	// 到期的 pro 同样被拒
	expired := testutil.TestUser(t, env.db,
		testutil.WithUsername("expired"),
		testutil.WithEmail("expired@example.com"),
		testutil.WithProUntil(time.Now().Add(-time.Hour)))
	expiredItem := testutil.TestUserItem(t, env.db, expired.ID, sender.ID, nil)

	_, err = env.service.Generate(context.Background(), expired.ID, expiredItem.ID, &dto.GenerateSummaryRequest{})
	assert.Equal(t, ErrProRequired, err)
}

func TestSummaryService_Generate_DailyLimitReached(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	now := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, env.daily.Incr(context.Background(), user.ID, now))
	}

	_, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	assert.Equal(t, ErrAILimitReached, err)
	assert.Equal(t, 0, env.provider.calls)
}

func TestSummaryService_Generate_DailyLimitBeforeCooldown(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	// 次数用尽且还在冷却窗口内：按准入顺序先报当日限额
	require.NoError(t, repository.NewSharedContentRepository(env.db).
		UpdateSummary(*item.SharedContentID, "刚生成的摘要", time.Now().Add(-10*time.Second)))

	now := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, env.daily.Incr(context.Background(), user.ID, now))
	}

	_, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{Force: true})
	assert.Equal(t, ErrAILimitReached, err)
	assert.Equal(t, 0, env.provider.calls)

	// 未指定 force 仍可复用现有摘要，不受限额影响
	result, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, "刚生成的摘要", result.Summary)
}

func TestSummaryService_Generate_ExistingSummaryReused(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	generatedAt := time.Now().Add(-10 * time.Minute)
	require.NoError(t, repository.NewSharedContentRepository(env.db).
		UpdateSummary(*item.SharedContentID, "已有的共享摘要", generatedAt))

	// 未指定 force：直接返回现有摘要，不调模型不扣次数
	result, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, "已有的共享摘要", result.Summary)
	assert.True(t, result.Shared)
	assert.Equal(t, 0, env.provider.calls)

	used, err := env.daily.Get(context.Background(), user.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestSummaryService_Generate_Cooldown(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	// 摘要刚生成 10 秒，force 重生成落在冷却窗口内
	require.NoError(t, repository.NewSharedContentRepository(env.db).
		UpdateSummary(*item.SharedContentID, "刚生成的摘要", time.Now().Add(-10*time.Second)))

	_, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{Force: true})
	assert.Equal(t, ErrAICooldown, err)
	assert.Equal(t, 0, env.provider.calls)
}

func TestSummaryService_Generate_ForceAfterCooldown(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	require.NoError(t, repository.NewSharedContentRepository(env.db).
		UpdateSummary(*item.SharedContentID, "旧摘要", time.Now().Add(-2*time.Minute)))

	result, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, env.provider.calls)

	// force 重生成写个人条目，不碰共享池
	assert.False(t, result.Shared)

	updated, err := repository.NewUserItemRepository(env.db).GetByID(item.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Summary)
	assert.Equal(t, "本期要点：Go 1.25 发布。", *updated.Summary)

	var shared model.SharedContent
	require.NoError(t, env.db.First(&shared, *item.SharedContentID).Error)
	assert.Equal(t, "旧摘要", *shared.Summary)
}

func TestSummaryService_Generate_Busy(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	// 另一请求已持有该条目的锁
	_, acquired, err := env.locker.Acquire(context.Background(),
		fmt.Sprintf("summary:%d", item.ID), 30*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	assert.Equal(t, ErrAIBusy, err)
	assert.Equal(t, 0, env.provider.calls)
}

func TestSummaryService_Generate_Timeout(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	env.provider.err = llm.ErrTimeout

	_, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	assert.Equal(t, ErrAITimeout, err)

	// 失败不扣当日次数
	used, err := env.daily.Get(context.Background(), user.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, used)

	// 锁已释放，重试不会撞 AI_BUSY
	env.provider.err = nil
	_, err = env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	assert.NoError(t, err)
}

func TestSummaryService_Generate_PrivateItem(t *testing.T) {
	env := setupSummaryService(t)

	user := testutil.TestUser(t, env.db, testutil.WithProUntil(time.Now().Add(24*time.Hour)))
	sender := testutil.TestSender(t, env.db, user.ID)

	key, err := env.blobStore.PutPrivate(user.ID, []byte("<html>private body</html>"))
	require.NoError(t, err)

	item := testutil.TestUserItem(t, env.db, user.ID, sender.ID, nil)
	require.NoError(t, env.db.Model(&model.UserItem{}).Where("id = ?", item.ID).
		Update("private_blob_key", key).Error)

	result, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	require.NoError(t, err)
	assert.False(t, result.Shared)

	updated, err := repository.NewUserItemRepository(env.db).GetByID(item.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Summary)
}

func TestSummaryService_Generate_NotConfigured(t *testing.T) {
	env := setupSummaryService(t)
	user, item := proUserWithItem(t, env)

	env.provider.configured = false

	_, err := env.service.Generate(context.Background(), user.ID, item.ID, &dto.GenerateSummaryRequest{})
	assert.Equal(t, ErrAINotConfigured, err)
}

func TestSummaryService_Generate_Permission(t *testing.T) {
	env := setupSummaryService(t)
	_, item := proUserWithItem(t, env)

	other := testutil.TestUser(t, env.db,
		testutil.WithUsername("other"),
		testutil.WithEmail("other@example.com"),
		testutil.WithProUntil(time.Now().Add(24*time.Hour)))

	_, err := env.service.Generate(context.Background(), other.ID, item.ID, &dto.GenerateSummaryRequest{})
	assert.Equal(t, ErrItemPermission, err)
}

func TestSummaryService_GetUsage(t *testing.T) {
	env := setupSummaryService(t)
	user := testutil.TestUser(t, env.db)

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, env.daily.Incr(context.Background(), user.ID, now))
	}

	info, err := env.service.GetUsage(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, info.DailyLimit)
	assert.Equal(t, 3, info.DailyUsed)
	assert.Equal(t, 47, info.Remaining)
}
