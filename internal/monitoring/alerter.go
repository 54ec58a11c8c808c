// Package monitoring raises alerts when a finished batch breaches its
// failure-rate or cost thresholds.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/config"
	"github.com/sells-group/campus-cli/internal/pipeline"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate AlertType = "batch_failure_rate"
	AlertCostOverrun AlertType = "cost_overrun"
)

// minFailureSamples is the fewest processed institutions that yield a
// failure rate worth alerting on.
const minFailureSamples = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Task      string         `json:"task"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a batch summary against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks a finished batch and returns any alerts. Skipped
// institutions do not count toward the failure rate.
func (a *Alerter) Evaluate(taskName string, sum pipeline.BatchSummary) []Alert {
	var alerts []Alert
	now := a.now()

	if sum.Institutions >= minFailureSamples && a.cfg.FailureRateThreshold > 0 {
		rate := float64(sum.Failed) / float64(sum.Institutions)
		if rate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertFailureRate,
				Task:     taskName,
				Severity: "high",
				Message: fmt.Sprintf(
					"Batch failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d processed)",
					rate*100, a.cfg.FailureRateThreshold*100, sum.Failed, sum.Institutions,
				),
				Details: map[string]any{
					"failure_rate": rate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       sum.Failed,
					"not_found":    sum.NotFound,
					"processed":    sum.Institutions,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.CostThresholdUSD > 0 && sum.CostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Task:     taskName,
			Severity: "high",
			Message: fmt.Sprintf(
				"Batch API cost $%.2f exceeds threshold $%.2f",
				sum.CostUSD, a.cfg.CostThresholdUSD,
			),
			Details: map[string]any{
				"cost_usd":      sum.CostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"input_tokens":  sum.InputTokens,
				"output_tokens": sum.OutputTokens,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL. Without a URL
// alerts are only logged. Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	for _, alert := range alerts {
		zap.L().Warn("monitoring: threshold breached",
			zap.String("type", string(alert.Type)),
			zap.String("task", alert.Task),
			zap.String("message", alert.Message),
		)
	}
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
