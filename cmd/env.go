package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/personalize"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/unipile"
)

// appEnv holds the initialized store, API clients, and pipeline components
// shared by the enrich/batch/dispatch/serve commands.
type appEnv struct {
	AccountID    string
	Store        store.Store
	Provider     unipile.Client
	AI           anthropic.Client
	Personalizer *personalize.Personalizer
	Orchestrator *enrich.Orchestrator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, provider and AI clients, and the enrichment
// orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Unipile.Key == "" {
		return nil, eris.New("unipile API key is required (OUTREACH_UNIPILE_KEY)")
	}
	account := accountFlag
	if account == "" {
		account = cfg.Unipile.AccountID
	}
	if account == "" {
		return nil, eris.New("unipile account ID is required (--account or OUTREACH_UNIPILE_ACCOUNT_ID)")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (OUTREACH_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	provider := unipile.NewClient(cfg.Unipile.Key,
		unipile.WithBaseURL(cfg.Unipile.BaseURL),
		unipile.WithRateLimit(cfg.Unipile.RequestsPerSec),
		unipile.WithTimeout(time.Duration(cfg.Unipile.TimeoutSecs)*time.Second),
	)
	aiClient := anthropic.NewClient(cfg.Anthropic.Key)

	sender, err := personalize.LoadSenderProfile(cfg.Sender.ProfilePath)
	if err != nil {
		zap.L().Warn("sender profile not loaded, outreach uses a generic sender",
			zap.String("path", cfg.Sender.ProfilePath),
			zap.Error(err),
		)
		sender = model.SenderProfile{}
	}

	personalizer := personalize.New(aiClient, cfg.Anthropic.Model,
		time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second, sender)

	orchestrator := enrich.NewOrchestrator(st, provider, personalizer, enrich.Options{
		AccountID:     account,
		CacheTTL:      cfg.Enrich.CacheTTL(),
		SearchResults: cfg.Enrich.SearchResults,
	})

	return &appEnv{
		AccountID:    account,
		Store:        st,
		Provider:     provider,
		AI:           aiClient,
		Personalizer: personalizer,
		Orchestrator: orchestrator,
	}, nil
}
