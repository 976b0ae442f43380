package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/queue"
)

var dispatchCampaignID string

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send personalized messages to a campaign's qualified prospects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sched := queue.NewScheduler(cfg.Queue.BackoffBase())
		dispatcher := queue.NewDispatcher(env.Store, env.Provider, sched, queue.DispatcherOptions{
			AccountID:    env.AccountID,
			SendAttempts: cfg.Queue.SendAttempts,
		})
		sched.Start(ctx)
		defer sched.Stop()

		enqueued, err := dispatcher.DispatchCampaign(ctx, dispatchCampaignID)
		if err != nil {
			return eris.Wrapf(err, "dispatch campaign %s", dispatchCampaignID)
		}

		// Block until the paced sends have all settled.
		sched.Drain()

		stats := sched.Stats()[queue.JobSendMessage]
		for _, job := range sched.Failed() {
			zap.L().Error("send permanently failed",
				zap.String("job_id", job.ID),
				zap.String("error", job.LastError),
			)
		}

		zap.L().Info("dispatch complete",
			zap.String("campaign_id", dispatchCampaignID),
			zap.Int("enqueued", enqueued),
			zap.Int("sent", stats.Succeeded),
			zap.Int("failed", stats.Exhausted),
		)
		return nil
	},
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchCampaignID, "campaign", "", "campaign ID (required)")
	_ = dispatchCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(dispatchCmd)
}
