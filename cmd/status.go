package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCampaignID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show campaign progress",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaign, err := st.GetCampaign(ctx, statusCampaignID)
		if err != nil {
			return eris.Wrapf(err, "load campaign %s", statusCampaignID)
		}
		total, err := st.CountProspects(ctx, statusCampaignID)
		if err != nil {
			return eris.Wrap(err, "count prospects")
		}

		zap.L().Info("campaign status",
			zap.String("campaign_id", campaign.ID),
			zap.String("name", campaign.Name),
			zap.String("status", string(campaign.Status)),
			zap.Int("prospects", total),
			zap.Int("sent", campaign.SentCount),
			zap.Int("replied", campaign.RepliedCount),
			zap.Int("daily_limit", campaign.DailyLimit),
		)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusCampaignID, "campaign", "", "campaign ID (required)")
	_ = statusCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(statusCmd)
}
