package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
)

var (
	cfg         *config.Config
	accountFlag string
)

var rootCmd = &cobra.Command{
	Use:   "outreach-cli",
	Short: "Campaign prospecting pipeline",
	Long:  "Enriches prospects from LinkedIn via Unipile, scores them against campaign targeting, generates personalized outreach with Claude, and dispatches rate-limited sends.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&accountFlag, "account", "", "provider account ID (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
