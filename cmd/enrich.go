package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrichProspectID string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich, score, and personalize a single prospect",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Orchestrator.Process(ctx, enrichProspectID)
		if err != nil {
			return eris.Wrapf(err, "enrich prospect %s", enrichProspectID)
		}

		zap.L().Info("prospect enriched",
			zap.String("prospect_id", p.ID),
			zap.String("name", p.FullName()),
			zap.Float64("score", p.Score),
			zap.String("status", string(p.Status)),
			zap.Bool("personalized", p.PersonalizedMessage != nil),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichProspectID, "prospect", "", "prospect ID (required)")
	_ = enrichCmd.MarkFlagRequired("prospect")
	rootCmd.AddCommand(enrichCmd)
}
