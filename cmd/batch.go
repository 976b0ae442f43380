package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/enrich"
)

var (
	batchCampaignID string
	batchLimit      int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich all pending prospects in a campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := batchLimit
		if limit <= 0 {
			limit = cfg.Enrich.DefaultLimit
		}

		processor := enrich.NewBatchProcessor(env.Store, env.Orchestrator, cfg.Enrich.BatchDelay())
		summary, err := processor.Run(ctx, batchCampaignID, limit)
		if err != nil {
			return eris.Wrapf(err, "batch enrich campaign %s", batchCampaignID)
		}

		zap.L().Info("batch enrichment complete",
			zap.String("campaign_id", batchCampaignID),
			zap.Int("processed", summary.Processed),
			zap.Int("qualified", summary.Qualified),
			zap.Int("failed", summary.Failed),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCampaignID, "campaign", "", "campaign ID (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max prospects to process (default from config)")
	_ = batchCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(batchCmd)
}
