package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkfold/newsletter_go_server/internal/model"
	"github.com/inkfold/newsletter_go_server/internal/testutil"
)

func TestUserItemRepository_GetByIDWithShared(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserItemRepository(db)
	user := testutil.TestUser(t, db)
	sender := testutil.TestSender(t, db, user.ID)
	shared := testutil.TestSharedContent(t, db, "<html>preloaded</html>")
	item := testutil.TestUserItem(t, db, user.ID, sender.ID, &shared.ID)

	found, err := repo.GetByIDWithShared(item.ID)
	require.NoError(t, err)
	require.NotNil(t, found.SharedContent)
	assert.Equal(t, shared.ContentHash, found.SharedContent.ContentHash)
}

func TestUserItemRepository_ListByUserID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserItemRepository(db)
	user := testutil.TestUser(t, db)
	sender := testutil.TestSender(t, db, user.ID)

	folder := &model.Folder{UserID: user.ID, Name: "新闻"}
	require.NoError(t, db.Create(folder).Error)

	for i := 0; i < 5; i++ {
		item := testutil.TestUserItem(t, db, user.ID, sender.ID, nil)
		if i < 2 {
			require.NoError(t, db.Model(item).Update("folder_id", folder.ID).Error)
		}
	}

	// 分页
	items, total, err := repo.ListByUserID(user.ID, 1, 3, nil, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 3)

	items, _, err = repo.ListByUserID(user.ID, 2, 3, nil, "")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// 按文件夹过滤
	items, total, err = repo.ListByUserID(user.ID, 1, 10, &folder.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)
}

func TestUserItemRepository_ListByUserID_Isolated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserItemRepository(db)
	alice := testutil.TestUser(t, db, testutil.WithUsername("alice"), testutil.WithEmail("alice@example.com"))
	bob := testutil.TestUser(t, db, testutil.WithUsername("bob"), testutil.WithEmail("bob@example.com"))
	sender := testutil.TestSender(t, db, alice.ID)

	testutil.TestUserItem(t, db, alice.ID, sender.ID, nil)
	testutil.TestUserItem(t, db, bob.ID, sender.ID, nil)

	items, total, err := repo.ListByUserID(alice.ID, 1, 10, nil, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, alice.ID, items[0].UserID)
}

func TestUserItemRepository_CountBySharedContentID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserItemRepository(db)
	alice := testutil.TestUser(t, db, testutil.WithUsername("alice"), testutil.WithEmail("alice@example.com"))
	bob := testutil.TestUser(t, db, testutil.WithUsername("bob"), testutil.WithEmail("bob@example.com"))
	sender := testutil.TestSender(t, db, alice.ID)
	shared := testutil.TestSharedContent(t, db, "<html>popular issue</html>")

	testutil.TestUserItem(t, db, alice.ID, sender.ID, &shared.ID)
	testutil.TestUserItem(t, db, bob.ID, sender.ID, &shared.ID)

	count, err := repo.CountBySharedContentID(shared.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUserItemRepository_UpdateSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserItemRepository(db)
	user := testutil.TestUser(t, db)
	sender := testutil.TestSender(t, db, user.ID)
	item := testutil.TestUserItem(t, db, user.ID, sender.ID, nil)

	generatedAt := time.Now()
	require.NoError(t, repo.UpdateSummary(item.ID, "个人摘要内容", generatedAt))

	found, err := repo.GetByID(item.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Summary)
	assert.Equal(t, "个人摘要内容", *found.Summary)
	require.NotNil(t, found.SummaryGeneratedAt)
}
