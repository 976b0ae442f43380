package unipile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// newFastClient builds a client with millisecond backoff and an effectively
// unthrottled rate limiter so tests run quickly.
func newFastClient(apiKey string, opts ...Option) Client {
	base := []Option{
		WithRateLimit(10000),
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			JitterFraction: 0,
		}),
	}
	return NewClient(apiKey, append(base, opts...)...)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	c := NewClient("test-key", WithTimeout(3*time.Second)).(*httpClient)
	assert.Equal(t, 3*time.Second, c.http.Timeout)

	// Zero and negative values keep the default.
	d := NewClient("test-key", WithTimeout(0)).(*httpClient)
	assert.Equal(t, 15*time.Second, d.http.Timeout)
}

func TestFetchByURL_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "/users/jean-dupont", r.URL.Path)
		assert.Equal(t, "acct-1", r.URL.Query().Get("account_id"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"provider_id":       "ACoAAB123",
			"public_identifier": "jean-dupont",
			"first_name":        "jean",
			"last_name":         "DUPONT",
			"headline":          "VP Engineering at Acme",
			"location":          "Paris, France",
			"connections_count": 500,
			"work_experience": []map[string]any{
				{"position": "VP Engineering", "company": "Acme", "start": "2021", "current": true},
				{"position": "Staff Engineer", "company": "Globex", "start": "2017", "end": "2021"},
			},
			"skills": []map[string]any{
				{"name": "Go"}, {"name": "Distributed Systems"},
			},
		})
	}))
	defer srv.Close()

	client := newFastClient("test-key", WithBaseURL(srv.URL))
	got, err := client.FetchByURL(context.Background(), "acct-1", "https://www.linkedin.com/in/jean-dupont/")

	require.NoError(t, err)
	assert.Equal(t, "ACoAAB123", got.LinkedInID)
	assert.Equal(t, "https://www.linkedin.com/in/jean-dupont", got.LinkedInURL)
	assert.Equal(t, "Jean", got.FirstName)
	assert.Equal(t, "Dupont", got.LastName)
	assert.Equal(t, "VP Engineering at Acme", got.Headline)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, "VP Engineering", got.Position)
	require.Len(t, got.Experience, 2)
	assert.Equal(t, "2017 - 2021", got.Experience[1].Dates)
	assert.Equal(t, []string{"Go", "Distributed Systems"}, got.Skills)
	require.NotNil(t, got.ConnectionsCount)
	assert.Equal(t, 500, *got.ConnectionsCount)
	assert.False(t, got.Empty())
}

func TestFetchByURL_BadURL(t *testing.T) {
	t.Parallel()

	client := newFastClient("test-key")
	_, err := client.FetchByURL(context.Background(), "acct-1", "https://example.com/profile/jean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile identifier")
}

func TestFetchByID_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"unknown user"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newFastClient("test-key", WithBaseURL(srv.URL))
	_, err := client.FetchByID(context.Background(), "acct-1", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchByID_RetriesOn503(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"provider_id": "ACoAAB123",
			"headline":    "CTO at Initech",
		})
	}))
	defer srv.Close()

	client := newFastClient("test-key", WithBaseURL(srv.URL))
	got, err := client.FetchByID(context.Background(), "acct-1", "ACoAAB123")

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "CTO at Initech", got.Headline)
}

func TestFetchByID_RateLimitHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"provider_id": "x", "headline": "h"}) //nolint:errcheck
	}))
	defer srv.Close()

	client := newFastClient("test-key", WithBaseURL(srv.URL))
	_, err := client.FetchByID(context.Background(), "acct-1", "x")

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchByName(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/linkedin/search", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "people", req.Category)
		assert.Equal(t, "Jean Dupont Acme", req.Keywords)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"items": []map[string]any{
				{"id": "ACoAAB123", "public_identifier": "jean-dupont", "name": "jean dupont", "headline": "VP Engineering"},
				{"id": "ACoAAB456", "name": "Jean Dupont-Martin", "headline": "Analyst"},
			},
		})
	}))
	defer srv.Close()

	client := newFastClient("test-key", WithBaseURL(srv.URL))
	got, err := client.SearchByName(context.Background(), "acct-1", "Jean Dupont", "Acme", 3)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Jean", got[0].FirstName)
	assert.Equal(t, "Dupont", got[0].LastName)
	assert.Equal(t, "https://www.linkedin.com/in/jean-dupont", got[0].LinkedInURL)
	assert.Equal(t, "ACoAAB456", got[1].LinkedInID)
}

func TestSendMessage_NewChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats", r.URL.Path)

		var req newChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "acct-1", req.AccountID)
		assert.Equal(t, []string{"ACoAAB123"}, req.AttendeeIDs)
		assert.Equal(t, "Hi Jean", req.Text)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"message_id": "msg-1",
			"chat_id":    "chat-1",
		})
	}))
	defer srv.Close()

	client := newFastClient("test-key", WithBaseURL(srv.URL))
	receipt, err := client.SendMessage(context.Background(), SendRequest{
		AccountID:  "acct-1",
		AttendeeID: "ACoAAB123",
		Text:       "Hi Jean",
	})

	require.NoError(t, err)
	assert.Equal(t, "msg-1", receipt.MessageID)
	assert.Equal(t, "chat-1", receipt.ChatID)
	assert.False(t, receipt.SentAt.IsZero())
}

func TestSendMessage_ExistingChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/chat-9/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"message_id": "msg-2"}) //nolint:errcheck
	}))
	defer srv.Close()

	client := newFastClient("test-key", WithBaseURL(srv.URL))
	receipt, err := client.SendMessage(context.Background(), SendRequest{
		AccountID: "acct-1",
		ChatID:    "chat-9",
		Text:      "Following up",
	})

	require.NoError(t, err)
	assert.Equal(t, "msg-2", receipt.MessageID)
	assert.Equal(t, "chat-9", receipt.ChatID)
}

func TestSendMessage_Validation(t *testing.T) {
	t.Parallel()

	client := newFastClient("test-key")

	_, err := client.SendMessage(context.Background(), SendRequest{AccountID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty message text")

	_, err = client.SendMessage(context.Background(), SendRequest{AccountID: "a", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attendee id required")
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"jean", "Jean"},
		{"DUPONT", "Dupont"},
		{"McNamara", "McNamara"},
		{"van der Berg", "van der Berg"},
		{"  jean  ", "Jean"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeName(tt.in), "input %q", tt.in)
	}
}

func TestPublicIdentifier(t *testing.T) {
	t.Parallel()

	id, err := publicIdentifier("https://www.linkedin.com/in/jean-dupont/")
	require.NoError(t, err)
	assert.Equal(t, "jean-dupont", id)

	id, err = publicIdentifier("linkedin.com/in/jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "jane-doe", id)

	_, err = publicIdentifier("https://www.linkedin.com/company/acme")
	require.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"message_received"}`)
	sig := ComputeSignature("secret", body)

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("secret", body, "deadbeef"))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("", body, sig))
	assert.False(t, VerifySignature("secret", body, ""))
}
