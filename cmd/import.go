package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

var importFilePath string

// seedFile is the YAML layout consumed by the import command: one campaign
// and its initial prospect list.
type seedFile struct {
	Campaign  seedCampaign   `yaml:"campaign"`
	Prospects []seedProspect `yaml:"prospects"`
}

type seedCampaign struct {
	ID                     string               `yaml:"id"`
	Name                   string               `yaml:"name"`
	Description            string               `yaml:"description"`
	TargetAudience         model.TargetAudience `yaml:"target_audience"`
	MessageTemplate        string               `yaml:"message_template"`
	AIConfig               model.AIConfig       `yaml:"ai_config"`
	DailyLimit             int                  `yaml:"daily_limit"`
	DelayBetweenMessagesMs int                  `yaml:"delay_between_messages_ms"`
}

type seedProspect struct {
	ID          string `yaml:"id"`
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	Email       string `yaml:"email"`
	Company     string `yaml:"company"`
	Position    string `yaml:"position"`
	Location    string `yaml:"location"`
	LinkedInURL string `yaml:"linkedin_url"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a campaign and its prospects from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(importFilePath)
		if err != nil {
			return eris.Wrap(err, "read seed file")
		}
		var seed seedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrap(err, "parse seed file")
		}
		if seed.Campaign.Name == "" {
			return eris.New("seed file has no campaign name")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		campaign := buildCampaign(seed.Campaign, len(seed.Prospects))
		if err := st.CreateCampaign(ctx, campaign); err != nil {
			return eris.Wrapf(err, "create campaign %s", campaign.Name)
		}

		created := 0
		for _, sp := range seed.Prospects {
			if sp.FirstName == "" && sp.LastName == "" && sp.LinkedInURL == "" {
				zap.L().Warn("skipping unidentifiable prospect entry")
				continue
			}
			p := buildProspect(sp, campaign.ID)
			if err := st.CreateProspect(ctx, p); err != nil {
				return eris.Wrapf(err, "create prospect %s", p.FullName())
			}
			created++
		}

		zap.L().Info("import complete",
			zap.String("campaign_id", campaign.ID),
			zap.String("campaign", campaign.Name),
			zap.Int("prospects", created),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func buildCampaign(sc seedCampaign, totalProspects int) *model.Campaign {
	now := time.Now().UTC()

	id := sc.ID
	if id == "" {
		id = uuid.New().String()
	}
	dailyLimit := sc.DailyLimit
	if dailyLimit <= 0 {
		dailyLimit = cfg.Campaign.DailyLimit
	}
	delayMs := sc.DelayBetweenMessagesMs
	if delayMs <= 0 {
		delayMs = cfg.Campaign.DelayBetweenMessagesMs
	}

	return &model.Campaign{
		ID:                   id,
		Name:                 sc.Name,
		Description:          sc.Description,
		Status:               model.CampaignStatusActive,
		TargetAudience:       sc.TargetAudience,
		MessageTemplate:      sc.MessageTemplate,
		AIConfig:             sc.AIConfig,
		DailyLimit:           dailyLimit,
		DelayBetweenMessages: time.Duration(delayMs) * time.Millisecond,
		TotalProspects:       totalProspects,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func buildProspect(sp seedProspect, campaignID string) *model.Prospect {
	now := time.Now().UTC()

	id := sp.ID
	if id == "" {
		id = uuid.New().String()
	}
	return &model.Prospect{
		ID:          id,
		CampaignID:  campaignID,
		FirstName:   sp.FirstName,
		LastName:    sp.LastName,
		Email:       sp.Email,
		Company:     sp.Company,
		Position:    sp.Position,
		Location:    sp.Location,
		LinkedInURL: sp.LinkedInURL,
		Status:      model.ProspectStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to campaign seed YAML (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
