package main

import (
	"fmt"

	"github.com/SlpAus/apkstore-backend/internal/catalog"
	"github.com/SlpAus/apkstore-backend/internal/platform/database"
	"github.com/apex/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := catalog.Migrate(db); err != nil {
			return err
		}
		log.WithField("driver", cfg.Database.Driver).Info("数据库表结构迁移完成")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "向空的数据库写入示例应用",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := catalog.Migrate(db); err != nil {
			return err
		}
		n, err := catalog.SeedDatabase(db)
		if err != nil {
			return fmt.Errorf("写入示例数据失败: %w", err)
		}
		if n == 0 {
			log.Info("数据库中已有应用，跳过示例数据")
			return nil
		}
		log.WithField("count", n).Info("示例数据写入完成")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd)
}
