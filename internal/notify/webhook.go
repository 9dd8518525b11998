package notify

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/pkg/httputil"
	"github.com/wonny/marginrecon/pkg/logger"
)

// Webhook POSTs each discrepancy as JSON
type Webhook struct {
	url     string
	client  *httputil.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewWebhook creates a webhook sink sending at most rps reports per second
func NewWebhook(url string, client *httputil.Client, rps float64, log *logger.Logger) *Webhook {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Webhook{
		url:     url,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log,
	}
}

// Report waits for the limiter, then posts d
func (w *Webhook) Report(ctx context.Context, d *contracts.Discrepancy) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	resp, err := w.client.PostJSON(ctx, w.url, d)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}

	w.logger.WithFields(map[string]interface{}{
		"run_id":       d.RunID,
		"margin_class": d.Margin,
		"status_code":  resp.StatusCode,
	}).Debug("Discrepancy posted")

	return nil
}
