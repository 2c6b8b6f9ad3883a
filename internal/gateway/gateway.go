// Package gateway is the completion gateway: the only place the service
// talks to a language model. Prompt in, raw text out. Provider calls are
// hand-rolled over net/http; everything above this package treats the model
// as a black box that may time out, reject credentials, or return garbage.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledgerchat/ledgerchat/internal/config"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// Completer is the contract the extraction agents depend on.
type Completer interface {
	// Complete sends a system prompt, the user content, and prior history,
	// and returns the raw model text. The text is expected to contain JSON
	// but is not guaranteed to; parsing is the caller's problem.
	Complete(ctx context.Context, systemPrompt, userContent string, history []models.ChatMessage) (string, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrorKind classifies gateway failures so callers can map them onto the
// right user-facing outcome.
type ErrorKind string

const (
	// KindConfiguration — missing credentials. Fatal for the request,
	// surfaced as service-unavailable, never silently degraded.
	KindConfiguration ErrorKind = "configuration"
	KindTimeout       ErrorKind = "timeout"
	KindAuth          ErrorKind = "auth"
	KindRateLimit     ErrorKind = "rate_limit"
	KindTransport     ErrorKind = "transport"
	KindMalformed     ErrorKind = "malformed"
)

// Error is a classified gateway failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a missing-credentials failure.
func IsConfiguration(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindConfiguration
}

// retryable reports whether a failure is worth one more attempt.
func retryable(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	switch ge.Kind {
	case KindTimeout, KindRateLimit, KindTransport:
		return true
	}
	return false
}

// ── Client ──────────────────────────────────────────────────

// driver is one provider implementation (openai, anthropic).
type driver interface {
	complete(ctx context.Context, systemPrompt, userContent string, history []models.ChatMessage) (string, error)
}

// Client wraps a provider driver with a per-call timeout and a single
// bounded retry for transient failures. Auth and configuration failures
// are never retried.
type Client struct {
	driver  driver
	timeout time.Duration
}

// New builds a gateway client from configuration.
func New(cfg config.GatewayConfig) (*Client, error) {
	var d driver
	switch cfg.Provider {
	case "anthropic":
		d = newAnthropicDriver(cfg)
	case "openai", "":
		d = newOpenAIDriver(cfg)
	default:
		return nil, fmt.Errorf("unknown gateway provider: %q", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{driver: d, timeout: timeout}, nil
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string, history []models.ChatMessage) (string, error) {
	var result string

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		text, err := c.driver.complete(callCtx, systemPrompt, userContent, history)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Msg("Gateway call failed, retrying once")
			return err
		}
		result = text
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return result, nil
}
