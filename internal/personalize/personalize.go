// Package personalize turns an enriched prospect into an outreach message,
// preferring AI generation and falling back to template substitution.
package personalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

const (
	defaultModel       = "claude-haiku-4-5-20251001"
	defaultTemperature = 0.7
	defaultMaxTokens   = int64(500)

	maxExperienceEntries = 3
	maxSkills            = 5
)

// Personalizer generates outreach messages for prospects.
type Personalizer struct {
	ai      anthropic.Client
	model   string
	timeout time.Duration
	sender  model.SenderProfile
}

// New creates a Personalizer. model and timeout fall back to defaults when
// zero-valued.
func New(ai anthropic.Client, modelID string, timeout time.Duration, sender model.SenderProfile) *Personalizer {
	if modelID == "" {
		modelID = defaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Personalizer{ai: ai, model: modelID, timeout: timeout, sender: sender}
}

// Result is one generated message plus how it was produced.
type Result struct {
	Message     string
	AIGenerated bool
}

// Generate produces a personalized message for the prospect. It never fails:
// when the AI call errors, times out, or returns empty content, the template
// fallback is used instead.
func (g *Personalizer) Generate(ctx context.Context, p model.Prospect, c model.Campaign) Result {
	msg, err := g.generateAI(ctx, p, c)
	if err == nil && msg != "" {
		return Result{Message: msg, AIGenerated: true}
	}
	if err != nil {
		zap.L().Warn("ai generation failed, using template fallback",
			zap.String("prospect_id", p.ID),
			zap.String("campaign_id", c.ID),
			zap.Error(err),
		)
	}
	return Result{Message: Fallback(c.MessageTemplate, p)}
}

func (g *Personalizer) generateAI(ctx context.Context, p model.Prospect, c model.Campaign) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	modelID := g.model
	if c.AIConfig.Model != "" {
		modelID = c.AIConfig.Model
	}
	temp := defaultTemperature
	if c.AIConfig.Temperature != nil {
		temp = *c.AIConfig.Temperature
	}
	maxTokens := defaultMaxTokens
	if c.AIConfig.MaxTokens != nil {
		maxTokens = *c.AIConfig.MaxTokens
	}

	resp, err := g.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   maxTokens,
		Temperature: &temp,
		System:      anthropic.BuildCachedSystemBlocks(g.systemPrompt()),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(p, c)},
		},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(modelID, "personalize")
	return resp.Text(), nil
}

func (g *Personalizer) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You write first-touch outreach messages on behalf of a sender.\n")
	fmt.Fprintf(&b, "Sender: %s", g.sender.Name)
	if g.sender.Title != "" {
		fmt.Fprintf(&b, ", %s", g.sender.Title)
	}
	if g.sender.Company != "" {
		fmt.Fprintf(&b, " at %s", g.sender.Company)
	}
	b.WriteString("\n")
	if g.sender.BusinessInfo != "" {
		fmt.Fprintf(&b, "About the sender's business: %s\n", g.sender.BusinessInfo)
	}
	if g.sender.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s\n", g.sender.CommunicationStyle)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Keep the message under 200 words.\n")
	b.WriteString("- Reference at least one concrete detail from the prospect's profile.\n")
	b.WriteString("- End with a clear, low-pressure call to action.\n")
	b.WriteString("- Output only the message text, no preamble or sign-off placeholders.\n")
	return b.String()
}

// buildPrompt assembles the prospect context the model personalizes against.
func buildPrompt(p model.Prospect, c model.Campaign) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an outreach message to %s.\n\nProspect profile:\n", p.FullName())
	writeField(&b, "Headline", p.Headline)
	writeField(&b, "Company", p.Company)
	writeField(&b, "Position", p.Position)
	writeField(&b, "Location", p.Location)
	writeField(&b, "Industry", p.Industry)
	writeField(&b, "Summary", p.Summary)

	if len(p.Experience) > 0 {
		b.WriteString("Recent experience:\n")
		for i, exp := range p.Experience {
			if i >= maxExperienceEntries {
				break
			}
			fmt.Fprintf(&b, "- %s at %s", exp.Title, exp.Company)
			if exp.Dates != "" {
				fmt.Fprintf(&b, " (%s)", exp.Dates)
			}
			b.WriteString("\n")
		}
	}

	if len(p.Skills) > 0 {
		skills := p.Skills
		if len(skills) > maxSkills {
			skills = skills[:maxSkills]
		}
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(skills, ", "))
	}

	if c.Description != "" {
		fmt.Fprintf(&b, "\nCampaign context: %s\n", c.Description)
	}
	if c.MessageTemplate != "" {
		fmt.Fprintf(&b, "\nUse this template as a tonal reference, not verbatim:\n%s\n", c.MessageTemplate)
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

// Reply generates an answer to an inbound message in an ongoing conversation.
// Unlike Generate it can fail; the caller retries through the dispatch queue.
func (g *Personalizer) Reply(ctx context.Context, history []model.Message, prospectName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msgs := make([]anthropic.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Direction == model.DirectionOutbound {
			role = "assistant"
		}
		msgs = append(msgs, anthropic.Message{Role: role, Content: m.Content})
	}

	system := g.systemPrompt() +
		fmt.Sprintf("\nYou are replying to %s in an ongoing conversation. Answer their last message directly and briefly.", prospectName)

	resp, err := g.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: defaultMaxTokens,
		System:    []anthropic.SystemBlock{{Text: system}},
		Messages:  msgs,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(g.model, "auto_reply")
	return resp.Text(), nil
}
