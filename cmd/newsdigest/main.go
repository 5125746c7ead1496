package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "newsdigest",
	Short: "Collects Argentine political headlines into a deduplicated daily digest",
	Long:  "Fetches RSS feeds and outlet homepages concurrently, removes duplicate stories, ranks them by date and publishes the digest to a JSON file, Postgres and Redis.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env 可选，存在时只补充尚未设置的环境变量
		_ = godotenv.Load()

		c, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		logger, err := config.NewLogger(cfg.Log)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
