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

// openAIDriver calls any OpenAI-compatible chat completions endpoint.
type openAIDriver struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func newOpenAIDriver(cfg config.GatewayConfig) *openAIDriver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	return &openAIDriver{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{},
	}
}

type openAIRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (d *openAIDriver) complete(ctx context.Context, systemPrompt, userContent string, history []models.ChatMessage) (string, error) {
	if d.apiKey == "" {
		return "", &Error{Kind: KindConfiguration, Err: fmt.Errorf("openai: api key not configured")}
	}

	messages := make([]models.ChatMessage, 0, len(history)+2)
	messages = append(messages, models.ChatMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, models.ChatMessage{Role: "user", Content: userContent})

	body, _ := json.Marshal(openAIRequest{Model: d.model, Messages: messages})

	url := d.endpoint + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("openai: create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", &Error{Kind: KindTimeout, Err: fmt.Errorf("openai: %w", err)}
		}
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("openai: request failed: %w", err)}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return "", classifyStatus("openai", httpResp.StatusCode, respBody)
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("openai: decode response: %w", err)}
	}
	if len(oaiResp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("openai: empty choices")}
	}
	return oaiResp.Choices[0].Message.Content, nil
}

// classifyStatus maps provider HTTP status codes onto gateway error kinds.
func classifyStatus(provider string, status int, body []byte) *Error {
	err := fmt.Errorf("%s: status %d: %s", provider, status, string(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindAuth, Err: err}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Err: err}
	case status >= 500:
		return &Error{Kind: KindTransport, Err: err}
	default:
		return &Error{Kind: KindTransport, Err: err}
	}
}
