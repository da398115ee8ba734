package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/nextcodehq/nextcode-mcp/internal/settings"
)

// Common errors
var (
	ErrServiceFailed = errors.New("annotation service failed")
	ErrEmptyResponse = errors.New("empty response content")
	ErrBadResponse   = errors.New("malformed response")
)

// Retry configuration
const (
	MaxAttempts      = 3
	BaseBackoffDelay = time.Second
)

// Default model identifiers. Step-dependent: file annotation and the middle
// synthesis round use the chat model, graph inference uses the reasoner.
const (
	DefaultChatModel     = "deepseek-chat"
	DefaultReasonerModel = "deepseek-reasoner"
)

var fenceOpen = regexp.MustCompile("(?i)^```json\\s*")

// Client sends two-message chat requests to the external annotation service.
// Endpoint and credentials are read fresh from the settings store on every
// call, so runtime settings changes apply to the next request.
type Client struct {
	settings   *settings.Store
	httpClient *http.Client

	maxAttempts int
	baseDelay   time.Duration
}

// NewClient creates a Client bound to a settings store
func NewClient(store *settings.Store) *Client {
	return &Client{
		settings: store,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxAttempts: MaxAttempts,
		baseDelay:   BaseBackoffDelay,
	}
}

// chat wire format

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a system+user chat request and returns the reply body as raw
// JSON, with any surrounding code fence stripped. Empty or non-JSON replies
// count as failed attempts. After MaxAttempts failures the last error is
// wrapped in ErrServiceFailed; callers must not retry further.
func (c *Client) Complete(ctx context.Context, model, systemPrompt, userContent string) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		raw, err := c.callOnce(ctx, model, systemPrompt, userContent)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Linear backoff: attempt index times the base delay
		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.baseDelay):
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrServiceFailed, c.maxAttempts, lastErr)
}

func (c *Client) callOnce(ctx context.Context, model, systemPrompt, userContent string) (json.RawMessage, error) {
	cfg := c.settings.Get()

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	sanitized := StripFence(apiResp.Choices[0].Message.Content)
	if !json.Valid([]byte(sanitized)) {
		return nil, fmt.Errorf("%w: reply is not valid JSON", ErrBadResponse)
	}

	return json.RawMessage(sanitized), nil
}

// StripFence removes an optional ```json ... ``` wrapper around a reply body
func StripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = fenceOpen.ReplaceAllString(trimmed, "")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
