package catalog

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移目录相关的所有表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&App{}, &Screenshot{}, &Comment{}, &UserLike{}, &Download{}); err != nil {
		return fmt.Errorf("无法迁移目录表: %w", err)
	}
	return nil
}

// SeedDatabase 在应用表为空时写入示例数据，返回写入的应用数量
func SeedDatabase(db *gorm.DB) (int, error) {
	var count int64
	if err := db.Model(&App{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("无法统计应用数量: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	seed := newSeedData()
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range seed.apps {
			app := seed.apps[i]
			oldID := app.ID
			app.ID = 0
			if err := tx.Create(&app).Error; err != nil {
				return fmt.Errorf("无法写入示例应用 %s: %w", app.PackageName, err)
			}
			for _, s := range seed.screenshots[oldID] {
				s.ID = 0
				s.AppID = app.ID
				if err := tx.Create(&s).Error; err != nil {
					return fmt.Errorf("无法写入示例截图: %w", err)
				}
			}
			for _, c := range seed.comments[oldID] {
				c.ID = 0
				c.AppID = app.ID
				if err := tx.Create(&c).Error; err != nil {
					return fmt.Errorf("无法写入示例评论: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(seed.apps), nil
}
