// Package unipile provides a client for the Unipile messaging and profile API.
package unipile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Client defines the Unipile operations used for enrichment and dispatch.
type Client interface {
	// FetchByURL resolves a public profile URL to a normalized profile.
	FetchByURL(ctx context.Context, accountID, profileURL string) (*model.EnrichmentResult, error)
	// FetchByID looks up a profile by its provider identifier.
	FetchByID(ctx context.Context, accountID, linkedinID string) (*model.EnrichmentResult, error)
	// SearchByName searches people by name, optionally scoped to a company.
	SearchByName(ctx context.Context, accountID, name, company string, limit int) ([]model.EnrichmentResult, error)
	// SendMessage delivers a message. An empty ChatID starts a new chat with
	// the attendee; otherwise the message is appended to the existing chat.
	SendMessage(ctx context.Context, req SendRequest) (*model.DeliveryReceipt, error)
}

// SendRequest describes one outbound message.
type SendRequest struct {
	AccountID  string
	ChatID     string
	AttendeeID string
	Text       string
}

// Option configures the Unipile client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetryConfig overrides retry behavior for transient failures.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewClient creates a new Unipile client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.unipile.com/v1",
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doJSON performs one rate-limited, retried request through the circuit
// breaker and decodes the response body into out.
func (c *httpClient) doJSON(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return eris.Wrap(err, "unipile: marshal request")
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return c.doOnce(ctx, method, reqURL, payload)
		})
	})
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "unipile: unmarshal response")
		}
	}
	return nil
}

func (c *httpClient) doOnce(ctx context.Context, method, reqURL string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, eris.Wrap(err, "unipile: create request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "unipile: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "unipile: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, resilience.NewRateLimitError(
			eris.Errorf("unipile: status 429: %s", string(body)), retryAfter)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("unipile: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, eris.Errorf("unipile: status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// ErrNotFound is returned when the provider has no record for the identifier.
var ErrNotFound = eris.New("unipile: not found")

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *httpClient) FetchByURL(ctx context.Context, accountID, profileURL string) (*model.EnrichmentResult, error) {
	ident, err := publicIdentifier(profileURL)
	if err != nil {
		return nil, err
	}
	return c.fetchProfile(ctx, accountID, ident)
}

func (c *httpClient) FetchByID(ctx context.Context, accountID, linkedinID string) (*model.EnrichmentResult, error) {
	if linkedinID == "" {
		return nil, eris.New("unipile: empty profile id")
	}
	return c.fetchProfile(ctx, accountID, linkedinID)
}

func (c *httpClient) fetchProfile(ctx context.Context, accountID, ident string) (*model.EnrichmentResult, error) {
	q := url.Values{}
	q.Set("account_id", accountID)
	q.Set("linkedin_sections", "experience,skills")

	var wire userProfile
	err := c.doJSON(ctx, http.MethodGet, "/users/"+url.PathEscape(ident), q, nil, &wire)
	if err != nil {
		return nil, eris.Wrapf(err, "unipile: fetch profile %s", ident)
	}
	return wire.toResult(), nil
}

func (c *httpClient) SearchByName(ctx context.Context, accountID, name, company string, limit int) ([]model.EnrichmentResult, error) {
	if limit <= 0 {
		limit = 5
	}
	keywords := name
	if company != "" {
		keywords = fmt.Sprintf("%s %s", name, company)
	}

	q := url.Values{}
	q.Set("account_id", accountID)
	q.Set("limit", strconv.Itoa(limit))

	req := searchRequest{API: "classic", Category: "people", Keywords: keywords}
	var wire searchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/linkedin/search", q, req, &wire); err != nil {
		return nil, eris.Wrapf(err, "unipile: search %q", keywords)
	}

	out := make([]model.EnrichmentResult, 0, len(wire.Items))
	for _, item := range wire.Items {
		out = append(out, *item.toResult())
	}
	return out, nil
}

func (c *httpClient) SendMessage(ctx context.Context, req SendRequest) (*model.DeliveryReceipt, error) {
	if req.Text == "" {
		return nil, eris.New("unipile: empty message text")
	}

	var wire sendResponse
	if req.ChatID != "" {
		body := chatMessageRequest{Text: req.Text}
		err := c.doJSON(ctx, http.MethodPost, "/chats/"+url.PathEscape(req.ChatID)+"/messages", nil, body, &wire)
		if err != nil {
			return nil, eris.Wrapf(err, "unipile: send to chat %s", req.ChatID)
		}
	} else {
		if req.AttendeeID == "" {
			return nil, eris.New("unipile: attendee id required to start a chat")
		}
		body := newChatRequest{
			AccountID:   req.AccountID,
			AttendeeIDs: []string{req.AttendeeID},
			Text:        req.Text,
		}
		err := c.doJSON(ctx, http.MethodPost, "/chats", nil, body, &wire)
		if err != nil {
			return nil, eris.Wrapf(err, "unipile: start chat with %s", req.AttendeeID)
		}
	}

	receipt := &model.DeliveryReceipt{
		MessageID: wire.MessageID,
		ChatID:    wire.ChatID,
		SentAt:    time.Now().UTC(),
	}
	if receipt.ChatID == "" {
		receipt.ChatID = req.ChatID
	}
	return receipt, nil
}
