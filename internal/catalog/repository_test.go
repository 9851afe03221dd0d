package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// createTestDB 在临时目录中创建一个已迁移的SQLite数据库
func createTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createTestRepository(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db := createTestDB(t)
	return NewRepository(db, "Other"), db
}

func TestRepository_UpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	repo, _ := createTestRepository(t)

	app, created, err := repo.UpsertApp(ctx, AppInput{Name: "Foo", PackageName: "com.foo", SizeMB: 12.5})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, app.ID)
	assert.Equal(t, "Other", app.Category)

	got, shots, comments, err := repo.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Downloads)
	assert.Zero(t, got.Likes)
	assert.Equal(t, 12.5, got.SizeMB)
	assert.Empty(t, shots)
	assert.Empty(t, comments)

	updated, created, err := repo.UpsertApp(ctx, AppInput{Name: "Foo2", PackageName: "com.foo", Category: "Tools"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, app.ID, updated.ID)
	assert.Equal(t, "Foo2", updated.Name)
	assert.Equal(t, "Tools", updated.Category)

	apps, err := repo.ListApps(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestRepository_ListExcludesLongFieldsAndIsOrdered(t *testing.T) {
	ctx := context.Background()
	repo, db := createTestRepository(t)

	n, err := SeedDatabase(db)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = SeedDatabase(db)
	require.NoError(t, err)
	assert.Zero(t, n)

	apps, err := repo.ListApps(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 6)
	for i, a := range apps {
		assert.Empty(t, a.LongDescription)
		assert.Empty(t, a.ApkURL)
		if i > 0 {
			assert.False(t, a.CreatedAt.After(apps[i-1].CreatedAt))
		}
	}
	assert.Equal(t, "Telegram", apps[0].Name)
}

func TestRepository_DetailOrdersScreenshotsAndComments(t *testing.T) {
	ctx := context.Background()
	repo, _ := createTestRepository(t)

	app, _, err := repo.UpsertApp(ctx, AppInput{Name: "Foo", PackageName: "com.foo"})
	require.NoError(t, err)

	shots, err := repo.AttachScreenshots(ctx, app.ID, []ScreenshotInput{
		{ImageURL: "b.png", Position: intPtr(2)},
		{ImageURL: "a.png"},
	})
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, 0, shots[1].Position)

	_, err = repo.AddComment(ctx, app.ID, "first", "one")
	require.NoError(t, err)
	_, err = repo.AddComment(ctx, app.ID, "second", "two")
	require.NoError(t, err)

	_, gotShots, gotComments, err := repo.GetApp(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, gotShots, 2)
	assert.Equal(t, "a.png", gotShots[0].ImageURL)
	assert.Equal(t, "b.png", gotShots[1].ImageURL)
	require.Len(t, gotComments, 2)
	assert.Equal(t, "second", gotComments[0].Username)
}

func TestRepository_ToggleLikeIsAnInvolution(t *testing.T) {
	ctx := context.Background()
	repo, db := createTestRepository(t)

	app, _, err := repo.UpsertApp(ctx, AppInput{Name: "Foo", PackageName: "com.foo"})
	require.NoError(t, err)
	bob := Visitor{IP: "10.0.0.1"}

	res, err := repo.ToggleLike(ctx, app.ID, "bob", bob)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, Likes: 1}, res)

	// 同一用户名、不同来源地址是另一条点赞记录
	res, err = repo.ToggleLike(ctx, app.ID, "bob", Visitor{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, Likes: 2}, res)

	res, err = repo.ToggleLike(ctx, app.ID, "bob", bob)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: false, Likes: 1}, res)

	var count int64
	require.NoError(t, db.Model(&UserLike{}).Where("app_id = ?", app.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = repo.ToggleLike(ctx, 999, "bob", bob)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_RecordDownloadNeverDecrements(t *testing.T) {
	ctx := context.Background()
	repo, db := createTestRepository(t)

	app, _, err := repo.UpsertApp(ctx, AppInput{Name: "My Cool App", PackageName: "com.cool", ApkURL: "/uploads/apks/cool.apk"})
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		got, err := repo.RecordDownload(ctx, app.ID, Visitor{IP: "10.0.0.1", UserAgent: "test"})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), got.Downloads)
	}

	var events int64
	require.NoError(t, db.Model(&Download{}).Where("app_id = ?", app.ID).Count(&events).Error)
	assert.Equal(t, int64(n), events)
}

func TestRepository_RecordDownloadWithoutBinary(t *testing.T) {
	ctx := context.Background()
	repo, db := createTestRepository(t)

	app, _, err := repo.UpsertApp(ctx, AppInput{Name: "Foo", PackageName: "com.foo"})
	require.NoError(t, err)

	_, err = repo.RecordDownload(ctx, app.ID, Visitor{})
	assert.ErrorIs(t, err, ErrNoBinary)

	_, err = repo.RecordDownload(ctx, 999, Visitor{})
	assert.ErrorIs(t, err, ErrNotFound)

	var events int64
	require.NoError(t, db.Model(&Download{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestRepository_MissingAppIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := createTestRepository(t)

	_, _, _, err := repo.GetApp(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.AddComment(ctx, 42, "bob", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.AttachScreenshots(ctx, 42, []ScreenshotInput{{ImageURL: "a.png"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUniqueViolationIsConflict(t *testing.T) {
	db := createTestDB(t)

	require.NoError(t, db.Create(&App{Name: "Foo", PackageName: "com.foo", Category: "Other"}).Error)
	err := db.Create(&App{Name: "Bar", PackageName: "com.foo", Category: "Other"}).Error
	require.Error(t, err)

	classified := classify(err, "")
	assert.Equal(t, KindConflict, classified.Kind)
	assert.NotEmpty(t, classified.Code)
	assert.Equal(t, 400, classified.Kind.HTTPStatus())
}
