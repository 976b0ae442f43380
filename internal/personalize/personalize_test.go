package personalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

type mockAI struct {
	mock.Mock
}

func (m *mockAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

var testSender = model.SenderProfile{
	Name:    "Alex Rivera",
	Title:   "Head of Growth",
	Company: "Northstar",
}

func testProspect() model.Prospect {
	return model.Prospect{
		ID:         "p1",
		CampaignID: "c1",
		FirstName:  "Jean",
		LastName:   "Dupont",
		Headline:   "VP Engineering at Acme",
		Company:    "Acme",
		Position:   "VP Engineering",
		Location:   "Paris",
		Industry:   "Software",
		Experience: []model.Experience{
			{Title: "VP Engineering", Company: "Acme", Dates: "2021 - present"},
			{Title: "Staff Engineer", Company: "Globex", Dates: "2017 - 2021"},
			{Title: "Engineer", Company: "Initech", Dates: "2014 - 2017"},
			{Title: "Intern", Company: "Hooli", Dates: "2013"},
		},
		Skills: []string{"Go", "Kubernetes", "Leadership", "SQL", "Kafka", "Rust"},
	}
}

func TestGenerate_UsesAIResponse(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Hi Jean, your Go work at Acme caught my eye."}},
	}, nil)

	g := New(ai, "claude-haiku-4-5-20251001", 5*time.Second, testSender)
	res := g.Generate(context.Background(), testProspect(), model.Campaign{ID: "c1"})

	assert.True(t, res.AIGenerated)
	assert.Equal(t, "Hi Jean, your Go work at Acme caught my eye.", res.Message)
	ai.AssertExpectations(t)
}

func TestGenerate_FallsBackOnError(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("api unavailable"))

	g := New(ai, "", 5*time.Second, testSender)
	res := g.Generate(context.Background(), testProspect(), model.Campaign{
		MessageTemplate: "Hi {{firstName}}, congrats on the role at {{company}}.",
	})

	assert.False(t, res.AIGenerated)
	assert.Contains(t, res.Message, "Hi Jean, congrats on the role at Acme.")
}

func TestGenerate_FallbackNeverEmptyForUnenrichedProspect(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("api unavailable"))

	g := New(ai, "", 5*time.Second, testSender)
	res := g.Generate(context.Background(), model.Prospect{ID: "p1", CampaignID: "c1"}, model.Campaign{
		MessageTemplate: "{{company}} {{position}}",
	})

	assert.False(t, res.AIGenerated)
	assert.NotEmpty(t, res.Message)
}

func TestGenerate_FallsBackOnEmptyContent(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{}, nil)

	g := New(ai, "", 5*time.Second, testSender)
	res := g.Generate(context.Background(), testProspect(), model.Campaign{})

	assert.False(t, res.AIGenerated)
	assert.NotEmpty(t, res.Message)
}

func TestGenerate_CampaignAIConfigOverrides(t *testing.T) {
	ai := &mockAI{}
	var seen anthropic.MessageRequest
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			seen = args.Get(1).(anthropic.MessageRequest)
		}).
		Return(&anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: "ok"}},
		}, nil)

	g := New(ai, "claude-haiku-4-5-20251001", 5*time.Second, testSender)
	g.Generate(context.Background(), testProspect(), model.Campaign{
		AIConfig: model.AIConfig{
			Model:       "claude-sonnet-4-5-20250929",
			Temperature: model.Ptr(0.2),
			MaxTokens:   model.Ptr(int64(256)),
		},
	})

	assert.Equal(t, "claude-sonnet-4-5-20250929", seen.Model)
	require.NotNil(t, seen.Temperature)
	assert.Equal(t, 0.2, *seen.Temperature)
	assert.Equal(t, int64(256), seen.MaxTokens)
}

func TestBuildPrompt_TruncatesExperienceAndSkills(t *testing.T) {
	prompt := buildPrompt(testProspect(), model.Campaign{})

	assert.Contains(t, prompt, "VP Engineering at Acme")
	assert.Contains(t, prompt, "Engineer at Initech")
	assert.NotContains(t, prompt, "Hooli") // fourth entry dropped
	assert.Contains(t, prompt, "Go, Kubernetes, Leadership, SQL, Kafka")
	assert.NotContains(t, prompt, "Rust") // sixth skill dropped
}

func TestBuildPrompt_SkipsEmptyFields(t *testing.T) {
	prompt := buildPrompt(model.Prospect{FirstName: "Jean"}, model.Campaign{})

	assert.Contains(t, prompt, "Write an outreach message to Jean.")
	assert.NotContains(t, prompt, "Headline:")
	assert.NotContains(t, prompt, "Company:")
	assert.NotContains(t, prompt, "Skills:")
}

func TestReply_MapsDirectionsToRoles(t *testing.T) {
	ai := &mockAI{}
	var seen anthropic.MessageRequest
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			seen = args.Get(1).(anthropic.MessageRequest)
		}).
		Return(&anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: "Happy to share more."}},
		}, nil)

	g := New(ai, "", 5*time.Second, testSender)
	reply, err := g.Reply(context.Background(), []model.Message{
		{Direction: model.DirectionOutbound, Content: "Hi Jean"},
		{Direction: model.DirectionInbound, Content: "What do you do?"},
	}, "Jean Dupont")

	require.NoError(t, err)
	assert.Equal(t, "Happy to share more.", reply)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "assistant", seen.Messages[0].Role)
	assert.Equal(t, "user", seen.Messages[1].Role)
}

func TestReply_PropagatesError(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	g := New(ai, "", 5*time.Second, testSender)
	_, err := g.Reply(context.Background(), []model.Message{
		{Direction: model.DirectionInbound, Content: "hello?"},
	}, "Jean")
	require.Error(t, err)
}
