package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// CompletionClient calls the upstream completion endpoint over HTTP. The
// prompt text and the returned document are opaque at this layer; only the
// request envelope and the token accounting field belong to us.
type CompletionClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewCompletionClient creates a completion client with connection pooling.
func NewCompletionClient(endpoint, apiKey string, timeout time.Duration) *CompletionClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &CompletionClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,

				TLSHandshakeTimeout: 10 * time.Second,
				// Completion responses can take most of the request budget
				// before the first header arrives.
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

type completionRequest struct {
	SystemPrompt    string `json:"system_prompt"`
	UserPrompt      string `json:"user_prompt"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

type completionResponse struct {
	Payload    json.RawMessage `json:"payload"`
	TokensUsed int             `json:"tokens_used"`
}

// Complete posts the prompts to the completion endpoint and returns the
// opaque payload plus the token count the provider reported.
func (c *CompletionClient) Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (json.RawMessage, int, error) {
	if c.endpoint == "" {
		return nil, 0, fmt.Errorf("completion endpoint is not configured")
	}

	body, err := json.Marshal(completionRequest{
		SystemPrompt:    systemPrompt,
		UserPrompt:      userPrompt,
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode completion request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build completion request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, 0, fmt.Errorf("completion request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		logrus.WithFields(logrus.Fields{
			"component":   "CompletionClient",
			"status_code": response.StatusCode,
		}).Warn("Completion endpoint returned non-200 status")
		return nil, 0, fmt.Errorf("completion endpoint returned HTTP %d: %s", response.StatusCode, string(snippet))
	}

	var decoded completionResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, 0, fmt.Errorf("failed to decode completion response: %w", err)
	}

	return decoded.Payload, decoded.TokensUsed, nil
}
