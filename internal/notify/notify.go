// Package notify drives the critical-alert channel: failures severe
// enough that a human should see them immediately, kept distinct from
// the per-cycle structured JSON trace in internal/logger. The only
// caller is cycle.Manager on an atomic entry failure; drawdown pauses
// and exchange auth errors do not raise alerts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nao-namake/bitbank-decision-core/internal/security"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notifier fans critical events out to a webhook (if configured) and
// always to a dedicated logrus logger, so an alert is never lost even if
// the webhook target is unreachable.
type Notifier struct {
	webhookURL string
	log        *logrus.Logger
}

// NewNotifier builds a Notifier. webhookURL may be empty, in which case
// alerts are only logged, never posted.
func NewNotifier(webhookURL string) *Notifier {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	return &Notifier{webhookURL: webhookURL, log: log}
}

// Alert raises a critical-channel event. component names the raising
// subsystem (e.g. "execution", "risk"), reason is a short machine-usable
// tag, and detail is a free-form human message.
func (n *Notifier) Alert(ctx context.Context, severity Severity, component, reason, detail string) {
	entry := n.log.WithFields(logrus.Fields{
		"component": component,
		"reason":    reason,
		"severity":  severity,
	})
	if severity == SeverityCritical {
		entry.Error(detail)
	} else {
		entry.Warn(detail)
	}

	if n.webhookURL == "" {
		return
	}
	if err := security.ValidateURL(n.webhookURL); err != nil {
		n.log.WithError(err).Warn("notify: webhook URL failed validation, skipping post")
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"severity":  string(severity),
		"component": component,
		"reason":    reason,
		"detail":    detail,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	client := security.SafeHTTPClient(5 * time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.log.WithError(err).Warn("notify: failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		n.log.WithError(err).Warn("notify: webhook post failed")
		return
	}
	defer resp.Body.Close()
}
