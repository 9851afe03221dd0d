package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// summaryColumns 是列表接口查询的列，不包含长描述和安装包地址
var summaryColumns = []string{
	"id", "name", "package_name", "short_description", "logo_url",
	"downloads", "likes", "version", "size_mb", "category", "created_at",
}

// Repository 是基于GORM的持久化存储
type Repository struct {
	db              *gorm.DB
	defaultCategory string
}

var _ Store = (*Repository)(nil)

// NewRepository 创建持久化存储
func NewRepository(db *gorm.DB, defaultCategory string) *Repository {
	return &Repository{db: db, defaultCategory: defaultCategory}
}

func (r *Repository) ListApps(ctx context.Context) ([]App, error) {
	var apps []App
	err := r.db.WithContext(ctx).
		Select(summaryColumns).
		Order("created_at DESC").
		Order("id DESC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("无法查询应用列表: %w", err)
	}
	return apps, nil
}

func (r *Repository) GetApp(ctx context.Context, id uint) (*App, []Screenshot, []Comment, error) {
	db := r.db.WithContext(ctx)

	var app App
	if err := db.First(&app, id).Error; err != nil {
		return nil, nil, nil, notFoundOr(err, "无法查询应用 %d", id)
	}

	var shots []Screenshot
	if err := db.Where("app_id = ?", id).Order("position ASC").Order("id ASC").Find(&shots).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("无法查询应用 %d 的截图: %w", id, err)
	}

	var comments []Comment
	if err := db.Where("app_id = ?", id).Order("created_at DESC").Order("id DESC").Find(&comments).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("无法查询应用 %d 的评论: %w", id, err)
	}

	return &app, shots, comments, nil
}

// UpsertApp 先按包名查找，存在则更新全部可变字段，否则插入计数为0的新行。
// 查找和插入之间的并发竞争会由唯一索引拦截，并以唯一约束错误返回。
func (r *Repository) UpsertApp(ctx context.Context, in AppInput) (*App, bool, error) {
	var (
		app     App
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("package_name = ?", in.PackageName).Take(&app).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"name":              in.Name,
				"short_description": in.ShortDescription,
				"long_description":  in.LongDescription,
				"logo_url":          in.LogoURL,
				"apk_url":           in.ApkURL,
				"version":           in.Version,
				"size_mb":           float64(in.SizeMB),
			}
			if in.Category != "" {
				updates["category"] = in.Category
			}
			if err := tx.Model(&app).Updates(updates).Error; err != nil {
				return fmt.Errorf("无法更新应用 %s: %w", in.PackageName, err)
			}
			return tx.First(&app, app.ID).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			app = App{
				PackageName:      in.PackageName,
				Name:             in.Name,
				ShortDescription: in.ShortDescription,
				LongDescription:  in.LongDescription,
				LogoURL:          in.LogoURL,
				ApkURL:           in.ApkURL,
				Version:          in.Version,
				SizeMB:           float64(in.SizeMB),
				Category:         in.Category,
			}
			if app.Category == "" {
				app.Category = r.defaultCategory
			}
			if err := tx.Create(&app).Error; err != nil {
				return fmt.Errorf("无法创建应用 %s: %w", in.PackageName, err)
			}
			created = true
			return nil

		default:
			return fmt.Errorf("无法查询应用 %s: %w", in.PackageName, err)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return &app, created, nil
}

func (r *Repository) AddComment(ctx context.Context, appID uint, username, content string) (*Comment, error) {
	db := r.db.WithContext(ctx)
	if err := r.ensureApp(db, appID); err != nil {
		return nil, err
	}

	comment := Comment{AppID: appID, Username: username, Content: content}
	if err := db.Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("无法保存评论: %w", err)
	}
	return &comment, nil
}

// ToggleLike 在同一个事务中锁定应用行、切换点赞记录并更新计数。
// 行锁保证同一应用上的并发切换依次执行，计数不会重复增减。
func (r *Repository) ToggleLike(ctx context.Context, appID uint, username string, visitor Visitor) (LikeResult, error) {
	var result LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app App
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&app, appID).Error; err != nil {
			return notFoundOr(err, "无法锁定应用 %d", appID)
		}

		var like UserLike
		err := tx.Where("app_id = ? AND username = ? AND ip_address = ?", appID, username, visitor.IP).Take(&like).Error
		switch {
		case err == nil:
			if err := tx.Delete(&like).Error; err != nil {
				return fmt.Errorf("无法删除点赞记录: %w", err)
			}
			if err := tx.Model(&App{}).Where("id = ? AND likes > 0", appID).
				UpdateColumn("likes", gorm.Expr("likes - ?", 1)).Error; err != nil {
				return fmt.Errorf("无法减少点赞数: %w", err)
			}
			result.Liked = false

		case errors.Is(err, gorm.ErrRecordNotFound):
			like = UserLike{AppID: appID, Username: username, IPAddress: visitor.IP}
			if err := tx.Create(&like).Error; err != nil {
				return fmt.Errorf("无法创建点赞记录: %w", err)
			}
			if err := tx.Model(&App{}).Where("id = ?", appID).
				UpdateColumn("likes", gorm.Expr("likes + ?", 1)).Error; err != nil {
				return fmt.Errorf("无法增加点赞数: %w", err)
			}
			result.Liked = true

		default:
			return fmt.Errorf("无法查询点赞记录: %w", err)
		}

		return tx.Model(&App{}).Select("likes").Where("id = ?", appID).Scan(&result.Likes).Error
	})
	if err != nil {
		return LikeResult{}, err
	}
	return result, nil
}

// RecordDownload 追加一条下载日志并增加下载计数。
// 应用没有安装包时不记录，返回 ErrNoBinary。
func (r *Repository) RecordDownload(ctx context.Context, appID uint, visitor Visitor) (*App, error) {
	var app App
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&app, appID).Error; err != nil {
			return notFoundOr(err, "无法锁定应用 %d", appID)
		}
		if strings.TrimSpace(app.ApkURL) == "" {
			return fmt.Errorf("应用 %d: %w", appID, ErrNoBinary)
		}

		event := Download{AppID: appID, IPAddress: visitor.IP, UserAgent: visitor.UserAgent}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("无法记录下载: %w", err)
		}
		if err := tx.Model(&App{}).Where("id = ?", appID).
			UpdateColumn("downloads", gorm.Expr("downloads + ?", 1)).Error; err != nil {
			return fmt.Errorf("无法增加下载数: %w", err)
		}
		return tx.First(&app, appID).Error
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// AttachScreenshots 为每个元素插入一行截图，未提供 position 时为0
func (r *Repository) AttachScreenshots(ctx context.Context, appID uint, shots []ScreenshotInput) ([]Screenshot, error) {
	created := make([]Screenshot, 0, len(shots))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureApp(tx, appID); err != nil {
			return err
		}
		for _, in := range shots {
			s := Screenshot{AppID: appID, ImageURL: in.ImageURL}
			if in.Position != nil {
				s.Position = *in.Position
			}
			if err := tx.Create(&s).Error; err != nil {
				return fmt.Errorf("无法保存截图: %w", err)
			}
			created = append(created, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repository) ensureApp(db *gorm.DB, appID uint) error {
	var count int64
	if err := db.Model(&App{}).Where("id = ?", appID).Count(&count).Error; err != nil {
		return fmt.Errorf("无法查询应用 %d: %w", appID, err)
	}
	if count == 0 {
		return fmt.Errorf("应用 %d: %w", appID, ErrNotFound)
	}
	return nil
}

// notFoundOr 把 gorm.ErrRecordNotFound 转换为 ErrNotFound，其余错误原样包装
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
