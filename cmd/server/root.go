package main

import (
	"os"

	"github.com/SlpAus/apkstore-backend/internal/platform/config"
	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

// rootCmd 不带子命令时等同于 serve
var rootCmd = &cobra.Command{
	Use:           "apkstore",
	Short:         "APK 应用目录后端服务",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("命令执行失败")
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihandler.Default)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径 (默认查找 ./config/config.yaml 和 ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "输出调试日志")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
