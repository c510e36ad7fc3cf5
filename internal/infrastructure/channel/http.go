// Package channel implements the notification channels: SMTP mail and the
// HTTP based SMS gateway, chat webhook and generic signed webhook.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Channel names as stored on notifications
const (
	NameMail    = "mail"
	NameSMS     = "sms"
	NameChat    = "chat"
	NameWebhook = "webhook"
)

const (
	// maxErrorBody bounds how much of a failed response ends up in the error
	maxErrorBody       = 512
	defaultHTTPTimeout = 10 * time.Second
)

// ErrRequestFailed is wrapped by every non-2xx response
var ErrRequestFailed = errors.New("channel request failed")

// Poster sends JSON payloads for the HTTP channels. One Poster is shared by
// all of them so the rate limit applies to their combined traffic.
type Poster struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewPoster creates a poster. A non-positive perSecond disables throttling.
func NewPoster(perSecond float64, burst int, timeout time.Duration) *Poster {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Poster{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// PostJSON waits for the limiter, then posts payload to url
func (p *Poster) PostJSON(ctx context.Context, name, url string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal payload: %w", name, err)
	}
	return p.post(ctx, name, url, body, headers)
}

func (p *Poster) post(ctx context.Context, name, url string, body []byte, headers map[string]string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(snippet))
	if detail == "" {
		return fmt.Errorf("%s: %w: HTTP %d", name, ErrRequestFailed, resp.StatusCode)
	}
	return fmt.Errorf("%s: %w: HTTP %d: %s", name, ErrRequestFailed, resp.StatusCode, detail)
}
