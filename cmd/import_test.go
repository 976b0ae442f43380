package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
)

func TestBuildCampaignAppliesDefaults(t *testing.T) {
	cfg = &config.Config{Campaign: config.CampaignConfig{DailyLimit: 50, DelayBetweenMessagesMs: 5000}}

	c := buildCampaign(seedCampaign{Name: "Spring"}, 3)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.CampaignStatusActive, c.Status)
	assert.Equal(t, 50, c.DailyLimit)
	assert.Equal(t, 5*time.Second, c.DelayBetweenMessages)
	assert.Equal(t, 3, c.TotalProspects)
}

func TestBuildCampaignKeepsExplicitValues(t *testing.T) {
	cfg = &config.Config{Campaign: config.CampaignConfig{DailyLimit: 50, DelayBetweenMessagesMs: 5000}}

	c := buildCampaign(seedCampaign{
		ID:                     "camp-7",
		Name:                   "Spring",
		DailyLimit:             10,
		DelayBetweenMessagesMs: 1500,
	}, 0)

	assert.Equal(t, "camp-7", c.ID)
	assert.Equal(t, 10, c.DailyLimit)
	assert.Equal(t, 1500*time.Millisecond, c.DelayBetweenMessages)
}

func TestBuildProspect(t *testing.T) {
	p := buildProspect(seedProspect{
		FirstName:   "Jean",
		LastName:    "Dupont",
		Company:     "Acme",
		LinkedInURL: "https://linkedin.com/in/jean-dupont",
	}, "camp-1")

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "camp-1", p.CampaignID)
	assert.Equal(t, model.ProspectStatusPending, p.Status)
	assert.Equal(t, "Jean Dupont", p.FullName())
}

func TestSeedFileParses(t *testing.T) {
	raw := `
campaign:
  name: Spring outreach
  description: Engineering leaders in Paris
  target_audience:
    industries: [Software]
    locations: [Paris]
    positions: [engineering]
  message_template: "Hi {{firstName}}, quick question about {{company}}."
  daily_limit: 25
prospects:
  - first_name: Jean
    last_name: Dupont
    company: Acme
    linkedin_url: https://linkedin.com/in/jean-dupont
  - first_name: Marie
    last_name: Curie
`
	var seed seedFile
	require.NoError(t, yaml.Unmarshal([]byte(raw), &seed))

	assert.Equal(t, "Spring outreach", seed.Campaign.Name)
	assert.Equal(t, []string{"Software"}, seed.Campaign.TargetAudience.Industries)
	assert.Equal(t, 25, seed.Campaign.DailyLimit)
	require.Len(t, seed.Prospects, 2)
	assert.Equal(t, "Jean", seed.Prospects[0].FirstName)
}
