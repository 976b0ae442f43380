package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// BatchProcessor runs the pipeline over a campaign's unprocessed prospects,
// one at a time with a fixed delay between them to stay under provider
// rate limits.
type BatchProcessor struct {
	store        store.Store
	orchestrator *Orchestrator

	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchProcessor creates a BatchProcessor. delay defaults to 2s.
func NewBatchProcessor(s store.Store, o *Orchestrator, delay time.Duration) *BatchProcessor {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &BatchProcessor{
		store:        s,
		orchestrator: o,
		delay:        delay,
		sleep:        sleepCtx,
	}
}

// Summary reports the outcome of one batch run.
type Summary struct {
	Processed int
	Qualified int
	Failed    int
}

// Run processes up to limit pending prospects for the campaign in insertion
// order. A failing prospect is logged and skipped; the batch keeps going.
// Context cancellation stops the run after the in-flight prospect.
func (b *BatchProcessor) Run(ctx context.Context, campaignID string, limit int) (Summary, error) {
	var sum Summary

	prospects, err := b.store.FindPendingProspects(ctx, campaignID, limit)
	if err != nil {
		return sum, err
	}
	zap.L().Info("batch started",
		zap.String("campaign_id", campaignID),
		zap.Int("prospects", len(prospects)),
	)

	for i, p := range prospects {
		if i > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				return sum, err
			}
		}

		processed, err := b.orchestrator.Process(ctx, p.ID)
		if err != nil {
			sum.Failed++
			zap.L().Error("prospect failed, continuing batch",
				zap.String("prospect_id", p.ID),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			continue
		}

		sum.Processed++
		if processed.Status == model.ProspectStatusQualified {
			sum.Qualified++
		}
	}

	zap.L().Info("batch finished",
		zap.String("campaign_id", campaignID),
		zap.Int("processed", sum.Processed),
		zap.Int("qualified", sum.Qualified),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
