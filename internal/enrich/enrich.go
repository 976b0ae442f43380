// Package enrich runs the prospect pipeline: profile lookup, qualification
// scoring, and message personalization.
package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/personalize"
	"github.com/sells-group/outreach-cli/internal/scorer"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/unipile"
)

// Orchestrator runs the enrichment pipeline for a single prospect.
type Orchestrator struct {
	store        store.Store
	provider     unipile.Client
	personalizer *personalize.Personalizer

	accountID     string
	cacheTTL      time.Duration
	searchResults int

	nowFunc func() time.Time
}

// Options configures an Orchestrator.
type Options struct {
	// AccountID is the provider account used for profile lookups.
	AccountID string
	// CacheTTL is how long a fetched profile stays fresh. Default: 24h.
	CacheTTL time.Duration
	// SearchResults caps name-search candidates. Default: 5.
	SearchResults int
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(s store.Store, provider unipile.Client, p *personalize.Personalizer, opts Options) *Orchestrator {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.SearchResults <= 0 {
		opts.SearchResults = 5
	}
	return &Orchestrator{
		store:         s,
		provider:      provider,
		personalizer:  p,
		accountID:     opts.AccountID,
		cacheTTL:      opts.CacheTTL,
		searchResults: opts.SearchResults,
		nowFunc:       time.Now,
	}
}

// Process runs one prospect through lookup, scoring, and personalization,
// persists the outcome, and returns the updated prospect. A failed or empty
// profile lookup does not abort the pass: the prospect is still scored and
// personalized with whatever data it already has.
func (o *Orchestrator) Process(ctx context.Context, prospectID string) (*model.Prospect, error) {
	p, err := o.store.GetProspect(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	campaign, err := o.store.GetCampaign(ctx, p.CampaignID)
	if err != nil {
		return nil, err
	}

	upd := model.ProspectUpdate{}

	if o.profileStale(p) {
		if result := o.lookup(ctx, p); result != nil && !result.Empty() {
			mergeResult(p, &upd, result)
			upd.ProfileFetchedAt = model.Ptr(o.nowFunc().UTC())
		}
	} else {
		zap.L().Debug("profile cache fresh, skipping lookup",
			zap.String("prospect_id", p.ID),
			zap.Timep("fetched_at", p.ProfileFetchedAt),
		)
	}

	score := scorer.Score(*p, campaign.TargetAudience)
	upd.Score = model.Ptr(score)
	// Contacted and later statuses are never downgraded by rescoring.
	if p.Status == model.ProspectStatusPending || p.Status == model.ProspectStatusQualified {
		upd.Status = model.Ptr(scorer.StatusForScore(score))
	}

	res := o.personalizer.Generate(ctx, *p, *campaign)
	upd.PersonalizedMessage = model.Ptr(res.Message)

	if err := o.store.UpdateProspect(ctx, p.ID, upd); err != nil {
		return nil, err
	}
	p.Apply(upd)

	zap.L().Info("prospect processed",
		zap.String("prospect_id", p.ID),
		zap.String("campaign_id", p.CampaignID),
		zap.Float64("score", p.Score),
		zap.String("status", string(p.Status)),
		zap.Bool("ai_generated", res.AIGenerated),
	)
	return p, nil
}

// profileStale reports whether the prospect needs a fresh provider lookup.
func (o *Orchestrator) profileStale(p *model.Prospect) bool {
	if p.ProfileFetchedAt == nil {
		return true
	}
	return o.nowFunc().Sub(*p.ProfileFetchedAt) >= o.cacheTTL
}

// lookup tries the profile URL, then the provider id, then a name search.
// Returns nil when every route fails or comes back empty.
func (o *Orchestrator) lookup(ctx context.Context, p *model.Prospect) *model.EnrichmentResult {
	if p.LinkedInURL != "" {
		result, err := o.provider.FetchByURL(ctx, o.accountID, p.LinkedInURL)
		if err == nil && result != nil && !result.Empty() {
			return result
		}
		o.logLookupMiss(p, "url", err)
	}

	if p.LinkedInID != "" {
		result, err := o.provider.FetchByID(ctx, o.accountID, p.LinkedInID)
		if err == nil && result != nil && !result.Empty() {
			return result
		}
		o.logLookupMiss(p, "id", err)
	}

	name := p.FullName()
	if name == "" {
		return nil
	}
	results, err := o.provider.SearchByName(ctx, o.accountID, name, p.Company, o.searchResults)
	if err != nil {
		o.logLookupMiss(p, "search", err)
		return nil
	}
	for _, r := range results {
		if !r.Empty() {
			return &r
		}
	}
	o.logLookupMiss(p, "search", errors.New("no usable results"))
	return nil
}

func (o *Orchestrator) logLookupMiss(p *model.Prospect, route string, err error) {
	zap.L().Warn("profile lookup miss",
		zap.String("prospect_id", p.ID),
		zap.String("route", route),
		zap.Error(err),
	)
}

// mergeResult folds a non-empty provider result into the prospect and the
// pending update. Provider values win only where they are non-empty.
func mergeResult(p *model.Prospect, upd *model.ProspectUpdate, r *model.EnrichmentResult) {
	set := func(dst **string, v string) {
		if v != "" {
			*dst = model.Ptr(v)
		}
	}
	set(&upd.LinkedInID, r.LinkedInID)
	set(&upd.LinkedInURL, r.LinkedInURL)
	set(&upd.Headline, r.Headline)
	set(&upd.Summary, r.Summary)
	set(&upd.Company, r.Company)
	set(&upd.Position, r.Position)
	set(&upd.Location, r.Location)
	set(&upd.Industry, r.Industry)
	if len(r.Experience) > 0 {
		upd.Experience = r.Experience
	}
	if len(r.Skills) > 0 {
		upd.Skills = r.Skills
	}
	if r.ConnectionsCount != nil {
		upd.ConnectionsCount = r.ConnectionsCount
	}
	if r.FollowerCount != nil {
		upd.FollowerCount = r.FollowerCount
	}

	p.Apply(*upd)
}
