package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ledgerchat/ledgerchat/internal/config"
	"github.com/ledgerchat/ledgerchat/pkg/models"
)

type anthropicDriver struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func newAnthropicDriver(cfg config.GatewayConfig) *anthropicDriver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	return &anthropicDriver{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{},
	}
}

type anthropicRequest struct {
	Model     string               `json:"model"`
	System    string               `json:"system,omitempty"`
	Messages  []models.ChatMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (d *anthropicDriver) complete(ctx context.Context, systemPrompt, userContent string, history []models.ChatMessage) (string, error) {
	if d.apiKey == "" {
		return "", &Error{Kind: KindConfiguration, Err: fmt.Errorf("anthropic: api key not configured")}
	}

	messages := make([]models.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, models.ChatMessage{Role: "user", Content: userContent})

	body, _ := json.Marshal(anthropicRequest{
		Model:     d.model,
		System:    systemPrompt,
		Messages:  messages,
		MaxTokens: 4096,
	})

	url := d.endpoint + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("anthropic: create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", d.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", &Error{Kind: KindTimeout, Err: fmt.Errorf("anthropic: %w", err)}
		}
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("anthropic: request failed: %w", err)}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return "", classifyStatus("anthropic", httpResp.StatusCode, respBody)
	}

	var anthResp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&anthResp); err != nil {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("anthropic: decode response: %w", err)}
	}

	content := ""
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			content += c.Text
		}
	}
	if content == "" {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("anthropic: empty content")}
	}
	return content, nil
}
